package core

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Copy modes of the section splitter.
const (
	CopyInline = "inline"
	CopyQueue  = "queue"
)

type (
	DatabaseConfig struct {
		Engine        string `json:"engine" validate:"required"`
		Host          string `json:"host" validate:"required"`
		Port          int    `json:"port" validate:"required,min=1,max=65535"`
		Name          string `json:"name" validate:"required,alphanum_"`
		User          string `json:"user"`
		Password      string `json:"password"`
		AdminUser     string `json:"adminUser"`
		AdminPassword string `json:"adminPassword"`
		DisableTLS    bool   `json:"disableTLS"`
	}

	RemoverConfig struct {
		MaxPasses           int     `json:"maxPasses" validate:"required,min=1"`
		ProtectedAccountIDs []int64 `json:"protectedAccountIDs" validate:"positive_ids"`
	}

	SplitterConfig struct {
		CopyMode         string        `json:"copyMode" validate:"required,oneof=inline queue"`
		CopyPollInterval time.Duration `json:"copyPollInterval" validate:"required"`
		CopyTimeout      time.Duration `json:"copyTimeout" validate:"required,gtfield=CopyPollInterval"`
	}

	Config struct {
		Env          string `json:"env"`
		Debug        bool   `json:"debug"`
		Build        string `json:"build"`
		RollbarToken string `json:"rollbarToken"`

		Database DatabaseConfig `json:"database"`
		Remover  RemoverConfig  `json:"remover"`
		Splitter SplitterConfig `json:"splitter"`
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// IsProtected reports whether accountID may never be removed.
func (c RemoverConfig) IsProtected(accountID int64) bool {
	for _, id := range c.ProtectedAccountIDs {
		if id == accountID {
			return true
		}
	}
	return false
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "dev")

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "canvas")
	v.SetDefault("database.user", "canvas")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("remover.maxPasses", 10)
	// default account and site admin
	v.SetDefault("remover.protectedAccountIDs", []string{"1", "2"})

	v.SetDefault("splitter.copyMode", CopyInline)
	v.SetDefault("splitter.copyPollInterval", time.Second)
	v.SetDefault("splitter.copyTimeout", time.Hour)
}

// LoadConfig reads the configuration of the environment named by ENV (DEV by
// default, TEST, QA or PROD) from defaults, an optional config/.env.<env>
// file and <ENV>_ prefixed variables.
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:          env,
		Debug:        v.GetBool("debug"),
		Build:        v.GetString("build"),
		RollbarToken: v.GetString("rollbarToken"),
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Remover: RemoverConfig{
			MaxPasses:           v.GetInt("remover.maxPasses"),
			ProtectedAccountIDs: parseIDs(v.GetStringSlice("remover.protectedAccountIDs")),
		},
		Splitter: SplitterConfig{
			CopyMode:         strings.ToLower(v.GetString("splitter.copyMode")),
			CopyPollInterval: v.GetDuration("splitter.copyPollInterval"),
			CopyTimeout:      v.GetDuration("splitter.copyTimeout"),
		},
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Validate checks every section of the config and reports field errors as a
// ValidationError.
func (c *Config) Validate() error {
	return Validate(c, "invalid config")
}

// Validate checks the struct tags of s. Field errors are reported as a
// ValidationError carrying msg and the translated messages.
func Validate(s interface{}, msg string) error {
	validate, translator := NewValidator()
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return errors.Wrap(err, "validating")
		}
		return NewValidationError(errors.New(msg), fieldErrors(verrs, translator)...)
	}
	return nil
}

func fieldErrors(verrs validator.ValidationErrors, translator ut.Translator) []FieldError {
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fe.Namespace(), Error: fe.Translate(translator)})
	}
	return fields
}

// parseIDs accepts ids given either as a list or as one comma-separated
// string (the form environment variables take). Unparseable entries are kept
// as zero so validation rejects them.
func parseIDs(raw []string) []int64 {
	var ids []int64
	for _, item := range raw {
		for _, s := range strings.Split(item, ",") {
			s = CleanString(s)
			if s == "" {
				continue
			}
			id, _ := strconv.ParseInt(s, 10, 64)
			ids = append(ids, id)
		}
	}
	return ids
}
