// Package config loads daemon settings from the environment and turns
// them into the immutable per-coin descriptors the engine runs with.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/viper"

	"github.com/glebkoxan36/mypip/internal/domain"
)

// CoinConfig is the startup snapshot for one monitored coin: where its
// data provider and node live, and the collection parameters. The
// descriptor starts from the chain defaults and applies any per-coin
// overrides from the environment.
type CoinConfig struct {
	DataURL    string
	RPCURL     string
	APIKey     string
	Descriptor domain.CoinDescriptor
}

// Config is the fully resolved daemon configuration.
type Config struct {
	Datadir       string
	LogLevel      uint32
	StoreType     string
	PostgresDSN   string
	ClickhouseDSN string
	KeyringFile   string
	ShutdownGrace time.Duration
	Coins         []CoinConfig
}

var (
	Datadir       = "DATADIR"
	LogLevel      = "LOG_LEVEL"
	StoreType     = "STORE_TYPE"
	PostgresDSN   = "PG_DSN"
	ClickhouseDSN = "CLICKHOUSE_DSN"
	KeyringFile   = "KEYRING_FILE"
	ShutdownGrace = "SHUTDOWN_GRACE"
	Coins         = "COINS"

	defaultDatadir       = appDatadir("sweepd", false)
	defaultLogLevel      = 4
	defaultStoreType     = "badger"
	defaultShutdownGrace = 30 * time.Second
)

// Store backend names accepted in StoreType.
const (
	StoreMemory   = "memory"
	StoreBadger   = "badger"
	StorePostgres = "postgres"
)

// LoadConfig reads the SWEEPD_* environment, creates the data
// directory and resolves the coin list. Every coin named in COINS must
// carry a data URL, a node RPC URL and a custody address; anything
// less is a startup error, not a sweep-time one.
func LoadConfig() (*Config, error) {
	viper.SetEnvPrefix("SWEEPD")
	viper.AutomaticEnv()

	viper.SetDefault(Datadir, defaultDatadir)
	viper.SetDefault(LogLevel, defaultLogLevel)
	viper.SetDefault(StoreType, defaultStoreType)
	viper.SetDefault(ShutdownGrace, defaultShutdownGrace)

	if err := initDatadir(); err != nil {
		return nil, fmt.Errorf("error while creating datadir: %s", err)
	}

	storeType := viper.GetString(StoreType)
	switch storeType {
	case StoreMemory, StoreBadger, StorePostgres:
	default:
		return nil, fmt.Errorf("unknown store type %q", storeType)
	}
	if storeType == StorePostgres && viper.GetString(PostgresDSN) == "" {
		return nil, fmt.Errorf("store type %q requires %s", StorePostgres, PostgresDSN)
	}

	coins, err := loadCoins()
	if err != nil {
		return nil, err
	}

	return &Config{
		Datadir:       cleanAndExpandPath(viper.GetString(Datadir)),
		LogLevel:      viper.GetUint32(LogLevel),
		StoreType:     storeType,
		PostgresDSN:   viper.GetString(PostgresDSN),
		ClickhouseDSN: viper.GetString(ClickhouseDSN),
		KeyringFile:   cleanAndExpandPath(viper.GetString(KeyringFile)),
		ShutdownGrace: viper.GetDuration(ShutdownGrace),
		Coins:         coins,
	}, nil
}

// loadCoins resolves the COINS list into per-coin configurations.
// Override keys follow the pattern SWEEPD_<COIN>_<FIELD>; a zero or
// empty override falls back to the chain default.
func loadCoins() ([]CoinConfig, error) {
	list := viper.GetString(Coins)
	if strings.TrimSpace(list) == "" {
		return nil, fmt.Errorf("no coins configured, set %s", Coins)
	}

	var coins []CoinConfig
	seen := make(map[domain.Coin]bool)
	for _, token := range strings.Split(list, ",") {
		symbol := domain.Coin(strings.ToUpper(strings.TrimSpace(token)))
		if symbol == "" {
			continue
		}
		if seen[symbol] {
			return nil, fmt.Errorf("coin %s listed twice", symbol)
		}
		seen[symbol] = true

		desc, ok := domain.DefaultDescriptor(symbol)
		if !ok {
			return nil, fmt.Errorf("unsupported coin %s", symbol)
		}

		dataURL := viper.GetString(coinKey(symbol, "DATA_URL"))
		if dataURL == "" {
			return nil, fmt.Errorf("coin %s: %s not set", symbol, coinKey(symbol, "DATA_URL"))
		}
		rpcURL := viper.GetString(coinKey(symbol, "RPC_URL"))
		if rpcURL == "" {
			return nil, fmt.Errorf("coin %s: %s not set", symbol, coinKey(symbol, "RPC_URL"))
		}

		desc.CustodyAddress = viper.GetString(coinKey(symbol, "CUSTODY_ADDRESS"))
		if v := viper.GetInt(coinKey(symbol, "CONFIRMATIONS")); v > 0 {
			desc.Confirmations = v
		}
		if v := viper.GetInt64(coinKey(symbol, "MIN_COLLECTION")); v > 0 {
			desc.MinCollection = v
		}
		if v := viper.GetInt64(coinKey(symbol, "COLLECTION_FEE")); v > 0 {
			desc.CollectionFee = v
		}
		if v := viper.GetDuration(coinKey(symbol, "SCAN_INTERVAL")); v > 0 {
			desc.ScanInterval = v
		}
		if err := desc.Validate(); err != nil {
			return nil, fmt.Errorf("coin %s: %w", symbol, err)
		}

		coins = append(coins, CoinConfig{
			DataURL:    dataURL,
			RPCURL:     rpcURL,
			APIKey:     viper.GetString(coinKey(symbol, "API_KEY")),
			Descriptor: desc,
		})
	}
	if len(coins) == 0 {
		return nil, fmt.Errorf("no coins configured, set %s", Coins)
	}
	return coins, nil
}

func coinKey(symbol domain.Coin, field string) string {
	return string(symbol) + "_" + field
}

func initDatadir() error {
	datadir := cleanAndExpandPath(viper.GetString(Datadir))
	return makeDirectoryIfNotExists(datadir)
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}

// cleanAndExpandPath expands environment variables and leading ~ in
// the passed path, cleans the result and returns it.
func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style
	// %VARIABLE%, but the variables can still be expanded via POSIX
	// style $VARIABLE.
	path = os.ExpandEnv(path)

	if !strings.HasPrefix(path, "~") {
		return filepath.Clean(path)
	}

	// Expand initial ~ to the current user's home directory, or ~otheruser
	// to otheruser's home directory. For path "~", set the home path to
	// the home directory of the current user.
	var homeDir string
	u, err := os.UserHomeDir()
	if err == nil {
		homeDir = u
	} else {
		homeDir = os.Getenv("HOME")
	}

	return filepath.Join(homeDir, path[1:])
}

// appDatadir returns an operating system specific directory to be used
// for storing application data for an application.
func appDatadir(appName string, roaming bool) string {
	if appName == "" || appName == "." {
		return "."
	}

	// The caller really shouldn't prepend the appName with a period, but
	// if they do, handle it gracefully by trimming it.
	appName = strings.TrimPrefix(appName, ".")
	appNameUpper := string(unicode.ToUpper(rune(appName[0]))) + appName[1:]
	appNameLower := string(unicode.ToLower(rune(appName[0]))) + appName[1:]

	// Get the OS specific home directory via the Go standard lib.
	var homeDir string
	u, err := os.UserHomeDir()
	if err == nil {
		homeDir = u
	}

	// Fall back to standard HOME environment variable that works for most
	// POSIX OSes if the directory from the Go standard lib failed.
	if err != nil || homeDir == "" {
		homeDir = os.Getenv("HOME")
	}

	switch runtime.GOOS {
	// Attempt to use the LOCALAPPDATA or APPDATA environment variable on
	// Windows.
	case "windows":
		// Windows XP and before didn't have a LOCALAPPDATA, so fallback
		// to regular APPDATA when LOCALAPPDATA is not set.
		appData := os.Getenv("LOCALAPPDATA")
		if roaming || appData == "" {
			appData = os.Getenv("APPDATA")
		}

		if appData != "" {
			return filepath.Join(appData, appNameUpper)
		}

	case "darwin":
		if homeDir != "" {
			return filepath.Join(homeDir, "Library", "Application Support", appNameUpper)
		}

	case "plan9":
		if homeDir != "" {
			return filepath.Join(homeDir, appNameLower)
		}

	default:
		if homeDir != "" {
			return filepath.Join(homeDir, "."+appNameLower)
		}
	}

	// Fall back to the current directory if all else fails.
	return "."
}
