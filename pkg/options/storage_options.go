package options

import (
	"fmt"

	"github.com/spf13/pflag"
)

var _ IOptions = (*StorageOptions)(nil)

// StorageOptions locates the settings database and the position registry.
type StorageOptions struct {
	DBPath       string `json:"db-path" yaml:"db-path" mapstructure:"db-path"`
	RegistryPath string `json:"registry-path" yaml:"registry-path" mapstructure:"registry-path"`
	Positions    int    `json:"positions" yaml:"positions" mapstructure:"positions"`
}

// NewStorageOptions returns the default database and registry locations.
func NewStorageOptions() *StorageOptions {
	return &StorageOptions{
		DBPath:       "farmer.db",
		RegistryPath: "positioning.json",
		Positions:    12,
	}
}

func (o *StorageOptions) Validate() []error {
	if o == nil {
		return nil
	}
	errs := []error{}
	if o.DBPath == "" || o.RegistryPath == "" {
		errs = append(errs, fmt.Errorf("storage.db-path and storage.registry-path are required"))
	}
	if o.Positions <= 0 {
		errs = append(errs, fmt.Errorf("storage.positions must be positive, got %d", o.Positions))
	}
	return errs
}

func (o *StorageOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.DBPath, "storage.db-path", o.DBPath, "Path of the bbolt settings database.")
	fs.StringVar(&o.RegistryPath, "storage.registry-path", o.RegistryPath, "Path of the position registry JSON file.")
	fs.IntVar(&o.Positions, "storage.positions", o.Positions, "Number of growing positions created for a new registry.")
}
