package actuator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/reef-pi/farmer/controller"
	"github.com/reef-pi/farmer/controller/storage"
)

func newTestController(t *testing.T) controller.Controller {
	t.Helper()
	store, err := storage.NewBolt(filepath.Join(t.TempDir(), "farmer.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return controller.New(store)
}

func TestDuty(t *testing.T) {
	tests := []struct {
		value   float64
		want    int
		wantErr bool
	}{
		{value: 0, want: 0},
		{value: 100, want: 4095},
		{value: 50, want: 2047},
		{value: 25, want: 1023},
		{value: 1, want: 40},
		{value: -1, wantErr: true},
		{value: 100.5, wantErr: true},
	}
	for _, tt := range tests {
		got, err := Duty(tt.value, 4095)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidIntensity, "value %v", tt.value)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "value %v", tt.value)
	}
}

func TestNormalizeTime(t *testing.T) {
	tests := map[string]string{
		"7:5":      "07:05:00",
		"07:05:09": "07:05:09",
		"23:59:59": "23:59:59",
		"0:0:0":    Sentinel,
	}
	for in, want := range tests {
		got, err := NormalizeTime(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	for _, bad := range []string{"", "24:00", "12", "12:60", "a:b:c", "1:2:3:4"} {
		_, err := NormalizeTime(bad)
		assert.ErrorIs(t, err, ErrInvalidTime, bad)
	}
}

func TestScheduler_ApplyHonoursEnableFlags(t *testing.T) {
	ctrl := gomock.NewController(t)
	driver := NewMockDriver(ctrl)
	s := NewScheduler(driver, DefaultConfig())

	driver.EXPECT().SetChannel(1, 4095).Return(nil)
	driver.EXPECT().SetChannel(5, 4095).Return(nil)
	require.NoError(t, s.Apply(100, [LightChannels]bool{true, false, true, false}))

	for _, ch := range []int{1, 4, 5, 8} {
		driver.EXPECT().SetChannel(ch, 0).Return(nil)
	}
	require.NoError(t, s.Apply(0, [LightChannels]bool{true, false, true, false}))
}

func TestScheduler_ManualModeAppliesEveryTick(t *testing.T) {
	ctrl := gomock.NewController(t)
	driver := NewMockDriver(ctrl)
	s := NewScheduler(driver, DefaultConfig())
	require.NoError(t, s.Update(LightSettings{
		On: Sentinel, Off: Sentinel, Intensity: 50,
		Enabled: [LightChannels]bool{true, true, true, true},
	}))

	for _, ch := range []int{1, 4, 5, 8} {
		driver.EXPECT().SetChannel(ch, 2047).Return(nil).Times(3)
	}
	for _, clock := range []string{"03:12:44", "12:00:00", "23:59:59"} {
		now, err := time.Parse("15:04:05", clock)
		require.NoError(t, err)
		require.NoError(t, s.Tick(now))
	}
}

func TestScheduler_OnOffWindow(t *testing.T) {
	ctrl := gomock.NewController(t)
	driver := NewMockDriver(ctrl)
	s := NewScheduler(driver, DefaultConfig())
	require.NoError(t, s.Update(LightSettings{
		On: "6:30", Off: "20:00:00", Intensity: 100,
		Enabled: [LightChannels]bool{true, false, false, false},
	}))
	assert.Equal(t, "06:30:00", s.Settings().On)

	at := func(clock string) time.Time {
		now, err := time.Parse("15:04:05", clock)
		require.NoError(t, err)
		return now
	}

	// nothing happens outside the two edges
	require.NoError(t, s.Tick(at("06:29:59")))

	driver.EXPECT().SetChannel(1, 4095).Return(nil)
	require.NoError(t, s.Tick(at("06:30:00")))

	for _, ch := range []int{1, 4, 5, 8} {
		driver.EXPECT().SetChannel(ch, 0).Return(nil)
	}
	require.NoError(t, s.Tick(at("20:00:00")))
}

func TestScheduler_RejectsInvalidSettings(t *testing.T) {
	s := NewScheduler(NewMockDriver(gomock.NewController(t)), DefaultConfig())
	assert.ErrorIs(t, s.Update(LightSettings{On: "25:00", Off: Sentinel}), ErrInvalidTime)
	assert.ErrorIs(t, s.Update(LightSettings{On: Sentinel, Off: Sentinel, Intensity: 120}), ErrInvalidIntensity)
	assert.True(t, s.Settings().Manual())
}

func TestController_SettingsPersist(t *testing.T) {
	c := newTestController(t)
	driver := NewMockDriver(gomock.NewController(t))

	m := New(c, DefaultConfig(), driver)
	require.NoError(t, m.Setup())
	assert.True(t, m.Lighting().Manual())

	require.NoError(t, m.UpdateLighting(LightSettings{On: "07:00:00", Off: "19:00:00", Intensity: 80}))
	require.NoError(t, m.UpdateDosing(DosingSettings{Schedule: "FREQ=HOURLY", Intensity: 20, Seconds: 5}))

	reloaded := New(c, DefaultConfig(), driver)
	require.NoError(t, reloaded.Setup())
	assert.Equal(t, "07:00:00", reloaded.Lighting().On)
	assert.Equal(t, 80.0, reloaded.Lighting().Intensity)
	assert.Equal(t, "FREQ=HOURLY", reloaded.Dosing().Schedule)

	assert.Error(t, m.UpdateDosing(DosingSettings{Schedule: "FREQ=HOURLY", Intensity: 20}))
}

func TestController_PumpAndCirculation(t *testing.T) {
	ctrl := gomock.NewController(t)
	driver := NewMockDriver(ctrl)
	cfg := DefaultConfig()
	m := New(newTestController(t), cfg, driver)

	driver.EXPECT().SetChannel(cfg.Pump, 4095).Return(nil)
	require.NoError(t, m.SetPump(100))

	driver.EXPECT().SetChannel(cfg.Nutrients, 0).Return(nil)
	require.NoError(t, m.SetNutrients(0))

	assert.ErrorIs(t, m.SetPump(150), ErrInvalidIntensity)

	driver.EXPECT().SetChannel(12, 2000).Return(nil)
	require.NoError(t, m.StartCirculation(12, 2000))
	driver.EXPECT().SetChannel(12, 0).Return(nil)
	require.NoError(t, m.StopCirculation(12))

	assert.ErrorIs(t, m.StartCirculation(16, 10), ErrInvalidChannel)
	assert.ErrorIs(t, m.StartCirculation(3, 5000), ErrInvalidDuty)
}

func TestController_ResetChannels(t *testing.T) {
	ctrl := gomock.NewController(t)
	driver := NewMockDriver(ctrl)
	cfg := DefaultConfig()
	cfg.ResetDelay = 0
	m := New(newTestController(t), cfg, driver)

	driver.EXPECT().SetChannel(gomock.Any(), 0).Return(nil).Times(16)
	require.NoError(t, m.ResetChannels(context.Background()))
}

func TestController_StartStop(t *testing.T) {
	ctrl := gomock.NewController(t)
	driver := NewMockDriver(ctrl)
	cfg := DefaultConfig()
	cfg.Tick = 5 * time.Millisecond
	m := New(newTestController(t), cfg, driver)
	require.NoError(t, m.Setup())

	// manual mode at 0% switches every floor off each tick
	driver.EXPECT().SetChannel(gomock.Any(), 0).Return(nil).MinTimes(4)

	m.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	m.Stop()
}

func TestParseSchedule(t *testing.T) {
	rr, err := ParseSchedule("")
	require.NoError(t, err)
	assert.Nil(t, rr)

	rr, err = ParseSchedule("FREQ=HOURLY;INTERVAL=4")
	require.NoError(t, err)
	next := rr.After(time.Now(), false)
	assert.WithinDuration(t, time.Now().Add(4*time.Hour), next, 2*time.Second)

	_, err = ParseSchedule("FREQ=SOMETIMES")
	assert.Error(t, err)
}

func TestStartSchedule_StopsOnQuit(t *testing.T) {
	rr, err := ParseSchedule("FREQ=SECONDLY;INTERVAL=1")
	require.NoError(t, err)
	quit := make(chan struct{})
	fired := make(chan struct{}, 10)
	StartSchedule(rr, quit, func() { fired <- struct{}{} })

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("schedule never fired")
	}
	close(quit)
}
