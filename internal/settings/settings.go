package settings

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/timshannon/bolthold"

	"github.com/mlefebvre/suggestarr/internal/models"
)

// Value types a setting may declare
const (
	TypeString = "string"
	TypeInt    = "int"
	TypeFloat  = "float"
	TypeBool   = "bool"
)

// Spec declares one setting: its identity, type, and default
type Spec struct {
	Group       string
	Name        string
	Type        string
	Default     string
	Description string
}

// Service is the typed settings registry. Values live in the database;
// declared specs supply types and defaults, and matching environment
// variables (GROUP_NAME, upper-cased) seed values on first run.
type Service struct {
	db *models.Database

	mu       sync.RWMutex
	specs    map[string]Spec // keyed by group/name
	onChange []func(group, name string)
}

// NewService creates a settings service on top of the database
func NewService(db *models.Database) *Service {
	return &Service{
		db:    db,
		specs: make(map[string]Spec),
	}
}

func key(group, name string) string {
	return group + "/" + name
}

// Register declares settings and seeds the database. A row that already
// exists keeps its stored value; otherwise the environment variable
// GROUP_NAME wins over the spec default.
func (s *Service) Register(specs []Spec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, spec := range specs {
		s.specs[key(spec.Group, spec.Name)] = spec

		_, err := s.db.GetSetting(spec.Group, spec.Name)
		if err == nil {
			continue
		}
		if err != bolthold.ErrNotFound {
			return fmt.Errorf("failed to read setting %s/%s: %w", spec.Group, spec.Name, err)
		}

		value := spec.Default
		envKey := strings.ToUpper(spec.Group + "_" + spec.Name)
		if env, ok := os.LookupEnv(envKey); ok {
			if verr := validate(spec.Type, env); verr != nil {
				logrus.WithFields(logrus.Fields{
					"setting": key(spec.Group, spec.Name),
					"env":     envKey,
				}).WithError(verr).Warn("Ignoring invalid environment override")
			} else {
				value = env
			}
		}

		row := &models.Setting{
			Group:       spec.Group,
			Name:        spec.Name,
			Type:        spec.Type,
			Description: spec.Description,
		}
		if value != "" {
			row.Value = &value
		}
		if err := s.db.UpsertSetting(row); err != nil {
			return fmt.Errorf("failed to seed setting %s/%s: %w", spec.Group, spec.Name, err)
		}
	}
	return nil
}

// OnChange registers a callback fired after any setting is updated
func (s *Service) OnChange(fn func(group, name string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Get returns the string value of a setting, falling back to the
// registered default when no value is stored
func (s *Service) Get(group, name string) string {
	row, err := s.db.GetSetting(group, name)
	if err == nil && row.Value != nil {
		return *row.Value
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if spec, ok := s.specs[key(group, name)]; ok {
		return spec.Default
	}
	return ""
}

// GetInt returns the setting parsed as an integer, 0 when unparsable
func (s *Service) GetInt(group, name string) int {
	v, err := strconv.Atoi(s.Get(group, name))
	if err != nil {
		return 0
	}
	return v
}

// GetFloat returns the setting parsed as a float, 0 when unparsable
func (s *Service) GetFloat(group, name string) float64 {
	v, err := strconv.ParseFloat(s.Get(group, name), 64)
	if err != nil {
		return 0
	}
	return v
}

// GetBool returns the setting parsed as a boolean, false when unparsable
func (s *Service) GetBool(group, name string) bool {
	v, err := strconv.ParseBool(s.Get(group, name))
	if err != nil {
		return false
	}
	return v
}

// Set validates a new value against the declared type, persists it, and
// fires change callbacks
func (s *Service) Set(group, name, value string) error {
	s.mu.RLock()
	spec, known := s.specs[key(group, name)]
	callbacks := s.onChange
	s.mu.RUnlock()

	if !known {
		return fmt.Errorf("unknown setting: %s/%s", group, name)
	}
	if value != "" {
		if err := validate(spec.Type, value); err != nil {
			return fmt.Errorf("invalid value for %s/%s: %w", group, name, err)
		}
	}

	row := &models.Setting{
		Group:       group,
		Name:        name,
		Type:        spec.Type,
		Description: spec.Description,
	}
	if value != "" {
		row.Value = &value
	}
	if err := s.db.UpsertSetting(row); err != nil {
		return err
	}

	logrus.WithField("setting", key(group, name)).Info("Setting updated")
	for _, fn := range callbacks {
		fn(group, name)
	}
	return nil
}

// Groups returns all stored settings grouped by group name
func (s *Service) Groups() (map[string][]*models.Setting, error) {
	rows, err := s.db.GetAllSettings()
	if err != nil {
		return nil, err
	}
	grouped := make(map[string][]*models.Setting)
	for _, row := range rows {
		grouped[row.Group] = append(grouped[row.Group], row)
	}
	return grouped, nil
}

func validate(valueType, value string) error {
	switch valueType {
	case TypeInt:
		if _, err := strconv.Atoi(value); err != nil {
			return fmt.Errorf("expected integer, got %q", value)
		}
	case TypeFloat:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fmt.Errorf("expected float, got %q", value)
		}
	case TypeBool:
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("expected boolean, got %q", value)
		}
	case TypeString, "":
		// Any string is fine
	default:
		return fmt.Errorf("unknown setting type %q", valueType)
	}
	return nil
}
