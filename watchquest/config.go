package watchquest

import (
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/watchquest/watchquest/watchquest/quests"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Config struct {
	Log      LogConfig      `toml:"log"`
	Telegram TelegramConfig `toml:"telegram"`
	DB       DBConfig       `toml:"db"`
	API      APIConfig      `toml:"api"`
	Spaces   SpacesConfig   `toml:"spaces"`
	Quests   []QuestConfig  `toml:"quests"`
}

type TelegramConfig struct {
	Token string `toml:"token"`

	// CheckTimeout bounds a single getChatMember call, in seconds.
	CheckTimeout int `toml:"check_timeout"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

type DBConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	PoolSize int    `toml:"pool_size"`
}

type APIConfig struct {
	Addr           string   `toml:"addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

type SpacesConfig struct {
	Key       string `toml:"key"`
	Secret    string `toml:"secret"`
	Region    string `toml:"region"`
	Bucket    string `toml:"bucket"`
	VideoRoot string `toml:"videoroot"`
}

// QuestConfig is one [[quests]] block. Rewards are written as decimal
// currency values ("0.50") and converted to cents at load.
type QuestConfig struct {
	ID      string  `toml:"id"`
	Type    string  `toml:"type"`
	Title   string  `toml:"title"`
	Link    string  `toml:"link"`
	Reward  float64 `toml:"reward"`
	Channel string  `toml:"channel"`
	Goal    int64   `toml:"goal"`
	Counter string  `toml:"counter"`
}

// QuestDefinitions converts the configured quest blocks into registry
// definitions. Conversion errors are fatal at startup.
func (c *Config) QuestDefinitions() ([]quests.Definition, error) {
	defs := make([]quests.Definition, 0, len(c.Quests))
	for _, qc := range c.Quests {
		cents, err := rewardToCents(qc.Reward)
		if err != nil {
			return nil, fmt.Errorf("quest %q: %w", qc.ID, err)
		}
		defs = append(defs, quests.Definition{
			ID:          qc.ID,
			Kind:        quests.Kind(qc.Type),
			RewardCents: cents,
			Title:       qc.Title,
			Link:        qc.Link,
			Channel:     qc.Channel,
			Goal:        qc.Goal,
			CounterKey:  qc.Counter,
		})
	}
	return defs, nil
}

func rewardToCents(reward float64) (int64, error) {
	if reward < 0 {
		return 0, fmt.Errorf("reward must not be negative")
	}
	cents := math.Round(reward * 100)
	if math.Abs(reward*100-cents) > 1e-6 {
		return 0, fmt.Errorf("reward must have at most two decimal places")
	}
	return int64(cents), nil
}
