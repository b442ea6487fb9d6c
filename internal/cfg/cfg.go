// Package cfg loads and validates the YAML configuration files of the cmd
// binaries.
package cfg

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/walachey/magicmarket-sub000/internal/model"
)

type Config struct {
	Debug bool `yaml:"debug"`

	Market        Market        `yaml:"market"`
	Statistics    Statistics    `yaml:"statistics"`
	VirtualMarket VirtualMarket `yaml:"virtual_market"`
}

// Market identifies the trading account and its storage locations.
type Market struct {
	AccountName    string `yaml:"account_name" validate:"required"`
	UID            string `yaml:"uid" validate:"required"`
	BridgeEndpoint string `yaml:"bridge_endpoint" validate:"omitempty,uri"`

	DataDir string `yaml:"data_dir" validate:"required"`
	SaveDir string `yaml:"save_dir" validate:"required"`

	SleepMilliseconds int `yaml:"sleep_ms" validate:"gte=0"`
}

func (m Market) Sleep() time.Duration {
	return time.Duration(m.SleepMilliseconds) * time.Millisecond
}

type Statistics struct {
	Enabled    bool   `yaml:"enabled"`
	OutputFile string `yaml:"output_file"`
}

// VirtualMarket selects the replay period; only the backtest binary reads
// it.
type VirtualMarket struct {
	LeadingPair    string   `yaml:"leading_pair"`
	SecondaryPairs []string `yaml:"secondary_pairs"`

	Begin string `yaml:"begin" validate:"omitempty,datetime=2006-01-02"`
	End   string `yaml:"end" validate:"omitempty,datetime=2006-01-02"`

	FromHour int `yaml:"from_hour" validate:"gte=0,lte=24"`
	ToHour   int `yaml:"to_hour" validate:"gte=0,lte=24"`

	MinTicksPerDay int `yaml:"min_ticks_per_day" validate:"gte=0"`
}

func (vm VirtualMarket) BeginDate() (model.Date, error) {
	return parseDate(vm.Begin)
}

func (vm VirtualMarket) EndDate() (model.Date, error) {
	return parseDate(vm.End)
}

func parseDate(value string) (model.Date, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return model.Date{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return model.DateOf(t), nil
}

// Load reads and validates a config file.
func Load(path string) (Config, error) {
	var config Config

	input, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("unable to read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(input, &config); err != nil {
		return config, fmt.Errorf("unable to parse config %q: %w", path, err)
	}
	if err := validator.New().Struct(config); err != nil {
		return config, fmt.Errorf("invalid config %q: %w", path, err)
	}
	return config, nil
}
