// Package config holds the section registry backing the yaml config file.
// Packages register their defaults under a section name during init and
// read the merged result back with Section.
package config

import (
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/copystructure"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type tree map[string]interface{}

// Registry pairs registered defaults with values loaded from files.
// Section names may be dotted to address nested maps.
type Registry struct {
	mu       sync.RWMutex
	loaded   tree
	defaults tree
}

func NewRegistry() *Registry {
	return &Registry{loaded: tree{}, defaults: tree{}}
}

var global = NewRegistry()

func LoadConfig(loc string) error { return global.LoadFile(loc) }

func LoadBytes(data []byte) error { return global.Load(data) }

// Reset drops everything loaded from files. Registered defaults are kept.
func Reset() { global.Reset() }

func Get(section string) (interface{}, error) { return global.Get(section) }

func SetDefault(section string, defaults interface{}) { global.SetDefault(section, defaults) }

func GetDefault(section string) interface{} { return global.Default(section) }

func GetAllDefaults() map[string]interface{} { return global.AllDefaults() }

// UnknownSections lists loaded top level sections nobody registered.
func UnknownSections() []string { return global.Unknown() }

// Section returns a typed copy of the section with loaded values merged
// over the registered defaults.
func Section[T any](section string) (*T, error) {
	return SectionOf[T](global, section)
}

func SectionOf[T any](r *Registry, section string) (*T, error) {
	tmp, err := r.Get(section)
	if err != nil {
		return nil, err
	}
	conf, _ := tmp.(*T)
	if conf == nil {
		return nil, errors.Errorf("section %s has type %T", section, tmp)
	}
	return conf, nil
}

func (r *Registry) LoadFile(loc string) error {
	data, err := os.ReadFile(loc)
	if err != nil {
		return errors.Wrap(err, "cannot load configuration")
	}
	return errors.Wrap(r.Load(data), loc)
}

// Load merges the top level sections of a yaml document over previously
// loaded ones.
func (r *Registry) Load(data []byte) error {
	doc := tree{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return errors.Wrap(err, "cannot parse configuration")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range doc {
		r.loaded[k] = v
	}
	return nil
}

func (r *Registry) Reset() {
	r.mu.Lock()
	r.loaded = tree{}
	r.mu.Unlock()
}

func (r *Registry) SetDefault(section string, defaults interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	node := r.defaults
	path := strings.Split(section, ".")
	for _, key := range path[:len(path)-1] {
		child, ok := node[key].(tree)
		if !ok {
			child = tree{}
			node[key] = child
		}
		node = child
	}
	node[path[len(path)-1]] = defaults
}

// Default returns a deep copy of the registered defaults, nil if the
// section is not registered.
func (r *Registry) Default(section string) interface{} {
	r.mu.RLock()
	val := lookup(r.defaults, section)
	r.mu.RUnlock()
	if val == nil {
		return nil
	}
	dup, err := copystructure.Copy(val)
	if err != nil {
		return nil
	}
	return dup
}

func (r *Registry) AllDefaults() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dup, err := copystructure.Copy(map[string]interface{}(r.defaults))
	if err != nil {
		return nil
	}
	ret, _ := dup.(map[string]interface{})
	return ret
}

// Get decodes the loaded values of section over a copy of its defaults.
// Loaded values are weakly typed so "5" fills an int field.
func (r *Registry) Get(section string) (interface{}, error) {
	def := r.Default(section)
	r.mu.RLock()
	val := lookup(r.loaded, section)
	r.mu.RUnlock()
	if def == nil {
		if val == nil {
			return nil, errors.Errorf("section not found: %s", section)
		}
		return val, nil
	}
	if val == nil {
		return def, nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           def,
	})
	if err != nil {
		return nil, errors.Wrap(err, section)
	}
	if err := decoder.Decode(val); err != nil {
		return nil, errors.Wrapf(err, "invalid section %s", section)
	}
	return def, nil
}

func (r *Registry) Unknown() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for k := range r.loaded {
		if _, ok := r.defaults[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// lookup walks a dotted path. yaml.v3 decodes nested maps as
// map[string]interface{}, registered defaults use tree.
func lookup(root tree, section string) interface{} {
	var cur interface{} = root
	for _, key := range strings.Split(section, ".") {
		switch node := cur.(type) {
		case tree:
			cur = node[key]
		case map[string]interface{}:
			cur = node[key]
		default:
			return nil
		}
		if cur == nil {
			return nil
		}
	}
	return cur
}
