package collector

import (
	"fmt"

	sf "github.com/snowflakedb/gosnowflake"
	"github.com/spf13/viper"
)

// LoadSnowflakeConfig reads connection settings (account, user, password,
// database, warehouse, role, ...) from a profile file in any format viper reads.
func LoadSnowflakeConfig(profilePath string) (*sf.Config, error) {
	v := viper.New()
	v.SetConfigFile(profilePath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read snowflake profile: %w", err)
	}

	var cfg sf.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse snowflake profile: %w", err)
	}
	return &cfg, nil
}

// snowflakeDSN prefers the profile file and falls back to a verbatim DSN.
func snowflakeDSN(src Source) (string, error) {
	if src.SnowflakeProfile == "" {
		if src.DSN == "" {
			return "", fmt.Errorf("snowflake needs a dsn or a profile")
		}
		return src.DSN, nil
	}
	cfg, err := LoadSnowflakeConfig(src.SnowflakeProfile)
	if err != nil {
		return "", err
	}
	dsn, err := sf.DSN(cfg)
	if err != nil {
		return "", fmt.Errorf("build snowflake dsn: %w", err)
	}
	return dsn, nil
}
