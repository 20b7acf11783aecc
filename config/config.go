package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	RouterURL     string
	PrivacyURL    string
	TokenListURL  string
	RPCUrl        string
	Commitment    string
	SkipPreflight bool
	SlippageBps   int
	PrivateKey    string
	Verbose       bool
}

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetConfigName(".wave-swap")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	// Set default values
	viper.SetDefault("router_url", "https://router.wave.exchange/api")
	viper.SetDefault("privacy_url", "https://confidential.wave.exchange/api")
	viper.SetDefault("token_list_url", "https://tokens.wave.exchange/list.json")
	viper.SetDefault("rpc_url", "https://api.mainnet-beta.solana.com")
	viper.SetDefault("commitment", "confirmed")
	viper.SetDefault("slippage_bps", 50)

	// Read from environment variables
	viper.SetEnvPrefix("WAVE_SWAP")
	viper.AutomaticEnv()

	// Read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		RouterURL:     viper.GetString("router_url"),
		PrivacyURL:    viper.GetString("privacy_url"),
		TokenListURL:  viper.GetString("token_list_url"),
		RPCUrl:        viper.GetString("rpc_url"),
		Commitment:    viper.GetString("commitment"),
		SkipPreflight: viper.GetBool("skip_preflight"),
		SlippageBps:   viper.GetInt("slippage_bps"),
		PrivateKey:    viper.GetString("private_key"),
		Verbose:       viper.GetBool("verbose"),
	}

	if cfg.RouterURL == "" {
		return nil, fmt.Errorf("router URL not configured. Set WAVE_SWAP_ROUTER_URL or create a .wave-swap.yaml config file")
	}

	return cfg, nil
}
