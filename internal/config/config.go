package config

import (
	"flag"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// Configuration struct
type Configuration struct {
	LogLevel         int           `yaml:"log_level"`
	SentryDSN        string        `yaml:"sentry_dsn"`
	LarkAlarmWebhook string        `yaml:"lark_alarm_webhook"`
	WalletConnect    WalletConnect `yaml:"wallet_connect"`
}

// WalletConnect configures the pairing with a remote wallet.
type WalletConnect struct {
	// RelayURL is the relay bridge endpoint. Empty selects one of the
	// public bridges.
	RelayURL string `yaml:"relay_url"`
	// Logger is the identifier the sign client logs under.
	Logger string `yaml:"logger"`
	// Chains the wallet must support, e.g. neo3:mainnet.
	Chains []string `yaml:"chains"`
	// Methods requested from the wallet.
	Methods []string `yaml:"methods"`
	App     App      `yaml:"app"`
	// QRCodePath is where the demo binary renders the pairing QR.
	QRCodePath string `yaml:"qr_code_path"`
	// SampleContract is invoked read-only by the demo binary.
	SampleContract SampleContract `yaml:"sample_contract"`
}

// App describes this application to the wallet.
type App struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	URL         string   `yaml:"url"`
	Icons       []string `yaml:"icons"`
}

// SampleContract is the read-only demo invocation target.
type SampleContract struct {
	ScriptHash string `yaml:"script_hash"`
	Operation  string `yaml:"operation"`
}

var Global *Configuration

// Read reads configuration information from yml.
func Read() {
	configFilePath := flag.String("config-path", "internal/config/config.yml", "The path to the configuration file")
	flag.Parse()
	logrus.Infof("Loading configuration file from %s", *configFilePath)
	globalConfig, err := readConfig(*configFilePath)
	if err != nil {
		logrus.Fatal(err)
	}
	Global = &globalConfig
}

func readConfig(path string) (Configuration, error) {
	logrus.Info("Starting to load configuration file ...")
	dat, err := os.ReadFile(path)
	if err != nil {
		logrus.Fatal(err)
	}
	t := Configuration{}
	err = yaml.Unmarshal(dat, &t)
	if err != nil {
		if os.IsNotExist(err) {
			logrus.Fatalf("file %s does not exist", path)
		} else {
			logrus.Fatalf("fail to decode config error: %v", err)
		}
	}
	return t, nil
}
