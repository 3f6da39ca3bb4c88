package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config agrupa a configuração da aplicação (lida via Viper do ambiente e, opcionalmente, de arquivo).
type Config struct {
	App   AppConfig
	DB    DBConfig
	HTTP  HTTPConfig
	Redis RedisConfig
	NFSe  NFSeConfig
}

// AppConfig configuração geral.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
}

// DBConfig configuração do PostgreSQL.
// Se DatabaseURL não estiver vazio, é usado como connection string completo.
type DBConfig struct {
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	MaxConns    int
	MinConns    int
	Migrate     bool // aplica as migrações embutidas na subida
}

// ConnectionString devolve DATABASE_URL se definido; senão o DSN montado.
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN monta o connection string com URL encoding da senha.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// HTTPConfig configuração do servidor HTTP.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr devolve o endereço de escuta (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RedisConfig cache de leitura. URL vazia desliga o cache.
type RedisConfig struct {
	URL string
}

// Enabled indica se há Redis configurado.
func (c RedisConfig) Enabled() bool { return c.URL != "" }

// NFSeConfig integração com o provedor fiscal.
type NFSeConfig struct {
	BaseURL                 string
	AuthURL                 string
	SystemName              string // chave em integration_credentials
	Environment             string // producao | homologacao
	DefaultAliquota         decimal.Decimal
	ServiceCode             string // cTribNac padrão quando o item não informa
	Timeout                 time.Duration
	TokenTTL                time.Duration // usado quando o provedor não informa expires_in
	TrackMessageOnlyChanges bool
	ReconcileBatch          int
}

// Load lê a configuração das variáveis de ambiente (e opcionalmente de arquivo).
// Env vars têm prioridade. Nomes esperados: APP_ENV, DB_HOST, NFSE_BASE_URL etc.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // ignorado se não existir

	v.SetConfigName("config")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	aliquota, err := decimal.NewFromString(getString(v, "NFSE_DEFAULT_ALIQUOTA", "2.00"))
	if err != nil {
		return nil, fmt.Errorf("NFSE_DEFAULT_ALIQUOTA inválida: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Env:      getString(v, "APP_ENV", "development"),
			Name:     getString(v, "APP_NAME", "finance-api"),
			LogLevel: getString(v, "LOG_LEVEL", "info"),
		},
		DB: DBConfig{
			DatabaseURL: getString(v, "DATABASE_URL", ""),
			Host:        getString(v, "DB_HOST", "localhost"),
			Port:        getInt(v, "DB_PORT", 5432),
			User:        getString(v, "DB_USER", "postgres"),
			Password:    getString(v, "DB_PASSWORD", ""),
			DBName:      getString(v, "DB_NAME", "finance"),
			SSLMode:     getString(v, "DB_SSLMODE", "disable"),
			MaxConns:    getInt(v, "DB_MAX_CONNS", 25),
			MinConns:    getInt(v, "DB_MIN_CONNS", 2),
			Migrate:     getBool(v, "DB_MIGRATE", true),
		},
		HTTP: HTTPConfig{
			Host: getString(v, "HTTP_HOST", "0.0.0.0"),
			Port: getInt(v, "HTTP_PORT", 8080),
		},
		Redis: RedisConfig{
			URL: getString(v, "REDIS_URL", ""),
		},
		NFSe: NFSeConfig{
			BaseURL:                 strings.TrimRight(getString(v, "NFSE_BASE_URL", "https://api.sandbox.nuvemfiscal.com.br"), "/"),
			AuthURL:                 getString(v, "NFSE_AUTH_URL", "https://auth.nuvemfiscal.com.br/oauth/token"),
			SystemName:              getString(v, "NFSE_SYSTEM_NAME", "nuvem_fiscal"),
			Environment:             getString(v, "NFSE_ENVIRONMENT", "homologacao"),
			DefaultAliquota:         aliquota,
			ServiceCode:             getString(v, "NFSE_SERVICE_CODE", "010101"),
			Timeout:                 time.Duration(getInt(v, "NFSE_TIMEOUT_SECONDS", 60)) * time.Second,
			TokenTTL:                time.Duration(getInt(v, "NFSE_TOKEN_TTL_SECONDS", 3600)) * time.Second,
			TrackMessageOnlyChanges: getBool(v, "NFSE_TRACK_MESSAGE_CHANGES", false),
			ReconcileBatch:          getInt(v, "NFSE_RECONCILE_BATCH", 50),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.NFSe.Environment {
	case "producao", "homologacao":
	default:
		return fmt.Errorf("NFSE_ENVIRONMENT deve ser producao ou homologacao, recebido %q", c.NFSe.Environment)
	}
	if c.NFSe.DefaultAliquota.IsNegative() || c.NFSe.DefaultAliquota.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("NFSE_DEFAULT_ALIQUOTA fora do intervalo 0-100: %s", c.NFSe.DefaultAliquota)
	}
	if c.NFSe.ReconcileBatch <= 0 {
		c.NFSe.ReconcileBatch = 50
	}
	return nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case int:
			return v.GetInt(key)
		case string:
			n, err := strconv.Atoi(v.GetString(key))
			if err != nil {
				return def
			}
			return n
		default:
			return v.GetInt(key)
		}
	}
	return def
}

func getBool(v *viper.Viper, key string, def bool) bool {
	if v.IsSet(key) {
		return v.GetBool(key)
	}
	return def
}
