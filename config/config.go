package config

import (
	"github.com/ericlagergren/decimal"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gitlab.com/vitanet-network/settlement_api/conv"
)

// Config structure
type Config struct {
	Server          ServerConfig          `mapstructure:"server"`
	DatabaseCluster DatabaseClusterConfig `mapstructure:"database_cluster"`
	Redis           RedisConfig           `mapstructure:"redis"`
	Kafka           KafkaConfig           `mapstructure:"kafka"`
	Crons           Crons                 `mapstructure:"crons"`
	Bonus           BonusConfig           `mapstructure:"bonus"`
	Propagation     PropagationConfig     `mapstructure:"propagation"`
	Settlement      SettlementConfig      `mapstructure:"settlement"`
}

// ServerConfig structure
type ServerConfig struct {
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	API        APIConfig        `mapstructure:"api"`
}

// APIConfig structure
type APIConfig struct {
	Port      int    `mapstructure:"port"`
	KeepAlive bool   `mapstructure:"keep_alive"`
	Domain    string `mapstructure:"domain"`
}

type MonitoringConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// DatabaseClusterConfig structure
type DatabaseClusterConfig struct {
	Writer DatabaseConfig `mapstructure:"writer"`
	Reader DatabaseConfig `mapstructure:"reader"`
}

// DatabaseConfig structure
type DatabaseConfig struct {
	Type            string `mapstructure:"type"`
	Host            string `mapstructure:"host"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Name            string `mapstructure:"name"`
	SSLmode         string `mapstructure:"sslmode"`
	ApplicationName string `mapstructure:"application_name"`
	Port            int    `mapstructure:"port"`
}

// RedisConfig structure
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	PoolSize int    `mapstructure:"pool_size"`
}

// KafkaConfig structure
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	UseTLS  bool     `mapstructure:"use_tls"`
	Topics  struct {
		OrderActivations string `mapstructure:"order_activations"`
		UserActivations  string `mapstructure:"user_activations"`
	} `mapstructure:"topics"`
	GroupID string `mapstructure:"group_id"`
}

// Crons - mapping of ids to execution frequency
type Crons map[string]string

// PropagationConfig bounds the upward tree walk.
type PropagationConfig struct {
	MaxDepth int `mapstructure:"max_depth"`
}

// SettlementConfig holds run level knobs for the settlement engines.
type SettlementConfig struct {
	LockTTLMinutes int `mapstructure:"lock_ttl_minutes"`
}

// BonusConfig carries the versioned bonus parameters. Finalized settlement
// records keep the Version string they were computed under, so a config can
// be hot swapped between periods without affecting history.
type BonusConfig struct {
	Version           string          `mapstructure:"version"`
	DirectRate        float64         `mapstructure:"direct_rate"`
	LevelPairRate     float64         `mapstructure:"level_pair_rate"`
	PairRate          float64         `mapstructure:"pair_rate"`
	PvUnit            float64         `mapstructure:"pv_unit"`
	ManagementRates   ManagementRates `mapstructure:"management_rates"`
	PairCap           map[int]float64 `mapstructure:"pair_cap"`
	GlobalReserveRate float64         `mapstructure:"global_reserve_rate"`
	TotalCapRate      float64         `mapstructure:"total_cap_rate"`
	PoolStockistRate  float64         `mapstructure:"pool_stockist_rate"`
	PoolLeaderRate    float64         `mapstructure:"pool_leader_rate"`
	StockistMinOrders int             `mapstructure:"stockist_min_orders"`
	LeaderMinWeakPv   float64         `mapstructure:"leader_min_weak_pv"`
	CarryFlashMode    string          `mapstructure:"carry_flash_mode"`
}

type ManagementRates struct {
	Gen1to3 float64 `mapstructure:"gen1_3"`
	Gen4to5 float64 `mapstructure:"gen4_5"`
	// Management bonus reaches at most this many generations upward.
	MaxGeneration int `mapstructure:"max_generation"`
}

// GetPvUnit returns the PV pairing unit as a decimal.
func (cfg *BonusConfig) GetPvUnit() *decimal.Big {
	return conv.NewFromFloat(cfg.PvUnit)
}

// GetPairRate returns the pair bonus rate as a decimal.
func (cfg *BonusConfig) GetPairRate() *decimal.Big {
	return conv.NewFromFloat(cfg.PairRate)
}

// GetPairCap returns the weekly pair bonus cap for a rank. A rank without a
// configured cap pays zero variable bonus; that is not an error.
func (cfg *BonusConfig) GetPairCap(rank int) *decimal.Big {
	cap, ok := cfg.PairCap[rank]
	if !ok {
		return conv.NewDecimalWithPrecision()
	}
	return conv.NewFromFloat(cap)
}

// GenerationRate returns the management override rate for a downline
// generation (1 based), zero beyond the configured maximum.
func (cfg *BonusConfig) GenerationRate(generation int) *decimal.Big {
	maxGen := cfg.ManagementRates.MaxGeneration
	if maxGen == 0 {
		maxGen = 5
	}
	switch {
	case generation >= 1 && generation <= 3:
		return conv.NewFromFloat(cfg.ManagementRates.Gen1to3)
	case generation >= 4 && generation <= maxGen:
		return conv.NewFromFloat(cfg.ManagementRates.Gen4to5)
	default:
		return conv.NewDecimalWithPrecision()
	}
}

// LoadConfig Load server configuration from the yaml file
func LoadConfig(viperConf *viper.Viper) Config {
	var config Config

	err := viperConf.Unmarshal(&config)
	if err != nil {
		log.Fatal().Err(err).Msg("Unable to decode config into struct")
	}
	return config
}

// OpenConfig godoc
func OpenConfig(file string) {
	if file != "" {
		// Use config file from the flag.
		viper.SetConfigFile(file)
	}

	viper.SetConfigType("yaml")
	viper.SetConfigName(".config")
	viper.AddConfigPath(".")                       // First try to load the config from the current directory
	viper.AddConfigPath("$HOME")                   // Then try to load it from the HOME directory
	viper.AddConfigPath("/etc/settlement_api/")    // As a last resort try to load it from /etc/
	viper.SetEnvPrefix("CFG")
	viper.AutomaticEnv()
	setDefaultVariables()

	err := viper.ReadInConfig() // Find and read the config file
	if err != nil {             // Handle errors reading the config file
		log.Fatal().Err(err).Msg("Unable to read configuration file")
	}
}

func setDefaultVariables() {
	viper.SetDefault("propagation.max_depth", 64)
	viper.SetDefault("settlement.lock_ttl_minutes", 60)
	viper.SetDefault("bonus.carry_flash_mode", "deduct_paid")
	viper.SetDefault("server.monitoring.path", "/metrics")
}
