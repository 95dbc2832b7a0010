package common

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog/log"
)

//go:embed config.default.yaml
var defaultConfig []byte

var configDir = "/etc/redismap.d"

type ConfigFormat string

const (
	JSONConfigFormat ConfigFormat = ".json"
	YAMLConfigFormat ConfigFormat = ".yaml"
	YMLConfigFormat  ConfigFormat = ".yml"
)

var parsers = map[ConfigFormat]koanf.Parser{
	JSONConfigFormat: json.Parser(),
	YAMLConfigFormat: yaml.Parser(),
	YMLConfigFormat:  yaml.Parser(),
}

func GetConfigParser(format ConfigFormat) (koanf.Parser, error) {
	if parser, ok := parsers[format]; ok {
		return parser, nil
	}
	return nil, fmt.Errorf("parser not found for format %s", format)
}

// configSource is one configuration layer. Layers load in order and each one
// overrides the keys it sets.
type configSource struct {
	name     string
	format   ConfigFormat
	provider koanf.Provider

	// Optional layers are logged and skipped when they fail to load.
	optional bool

	// Struct tag used for unmarshalling once this layer has loaded.
	tag string
}

// configSources lists the layers in load order: embedded defaults,
// CONFIG_PATH, the files in configDir by name, then CONFIG_JSON.
func configSources() []configSource {
	sources := []configSource{
		{name: "defaults", format: YAMLConfigFormat, provider: rawbytes.Provider(defaultConfig)},
	}

	if path := os.Getenv("CONFIG_PATH"); path != "" && filepath.Ext(path) != "" {
		sources = append(sources, configSource{
			name:     path,
			format:   ConfigFormat(filepath.Ext(path)),
			provider: file.Provider(path),
		})
	}

	var paths []string
	for format := range parsers {
		matches, err := filepath.Glob(filepath.Join(configDir, "*"+string(format)))
		if err == nil {
			paths = append(paths, matches...)
		}
	}
	sort.Strings(paths)

	for _, path := range paths {
		sources = append(sources, configSource{
			name:     path,
			format:   ConfigFormat(filepath.Ext(path)),
			provider: file.Provider(path),
			optional: true,
		})
	}

	if raw := os.Getenv("CONFIG_JSON"); raw != "" {
		sources = append(sources, configSource{
			name:     "CONFIG_JSON",
			format:   JSONConfigFormat,
			provider: rawbytes.Provider([]byte(raw)),
			optional: true,
			tag:      "json",
		})
	}

	return sources
}

// ConfigManager holds the merged configuration layers for T.
type ConfigManager[T any] struct {
	kf  *koanf.Koanf
	tag string
}

func NewConfigManager[T any]() (*ConfigManager[T], error) {
	cm := &ConfigManager[T]{
		kf:  koanf.New("."),
		tag: "key",
	}

	for _, source := range configSources() {
		err := cm.load(source)
		if err == nil {
			continue
		}

		if !source.optional {
			return nil, fmt.Errorf("config source %s: %w", source.name, err)
		}
		log.Error().Str("source", source.name).Err(err).Msg("failed to load config")
	}

	if cm.kf.Bool("debugMode") {
		log.Info().Str("config", cm.Print()).Msg("debug mode enabled. current configuration")
	}

	return cm, nil
}

func (cm *ConfigManager[T]) load(source configSource) error {
	parser, err := GetConfigParser(source.format)
	if err != nil {
		return err
	}

	if err := cm.kf.Load(source.provider, parser); err != nil {
		return err
	}

	if source.tag != "" {
		cm.tag = source.tag
	}
	return nil
}

func (cm *ConfigManager[T]) Print() string {
	return cm.kf.Sprint()
}

// Unmarshal decodes the merged layers into T.
func (cm *ConfigManager[T]) Unmarshal() (T, error) {
	var c T
	err := cm.kf.UnmarshalWithConf("", &c, koanf.UnmarshalConf{Tag: cm.tag})
	return c, err
}
