package key

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/drand/stepout/internal/fs"
)

// Tomler represents any struct that can be (un)marshalled into/from toml format
type Tomler interface {
	TOML() interface{}
	FromTOML(i interface{}) error
	TOMLValue() interface{}
}

// Save writes the TOML form of t to filePath. When secure is set the file is
// readable by the owner only.
func Save(filePath string, t Tomler, secure bool) error {
	var fd *os.File
	var err error
	if secure {
		fd, err = fs.CreateSecureFile(filePath)
	} else {
		fd, err = os.Create(filePath)
	}
	if err != nil {
		return fmt.Errorf("config: can't save %T to %s: %w", t, filePath, err)
	}
	defer fd.Close()
	if err := toml.NewEncoder(fd).Encode(t.TOML()); err != nil {
		return err
	}
	return fd.Sync()
}

// Load decodes the TOML file at filePath into t.
func Load(filePath string, t Tomler) error {
	tomlValue := t.TOMLValue()
	if _, err := toml.DecodeFile(filePath, tomlValue); err != nil {
		return err
	}
	return t.FromTOML(tomlValue)
}

// LoadGroup reads the group file at filePath.
func LoadGroup(filePath string) (*Group, error) {
	g := new(Group)
	if err := Load(filePath, g); err != nil {
		return nil, err
	}
	return g, nil
}

// LoadStepOutList reads the step-out file at filePath.
func LoadStepOutList(filePath string) (*StepOutList, error) {
	l := new(StepOutList)
	if err := Load(filePath, l); err != nil {
		return nil, err
	}
	return l, nil
}
