package identity

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/sufield/fincert/internal/config"
)

// Environment keys consulted when the configuration carries no password.
const (
	EnvLogin    = "FINCERT_LOGIN"
	EnvPassword = "FINCERT_PASSWORD"
)

// DefaultEnvFile is read when credentials.env_file is not set.
const DefaultEnvFile = ".env"

// Credentials is the account used for account/login.
type Credentials struct {
	Login    string
	Password string
}

// String masks the password so credentials can be logged.
func (c Credentials) String() string {
	return fmt.Sprintf("%s:***", c.Login)
}

// ResolveCredentials returns the account from the configuration, falling
// back to the process environment and then to a dotenv file for any value
// left empty. A missing default dotenv file is not an error; a missing
// explicitly configured one is.
func ResolveCredentials(cfg config.CredentialsConfig) (Credentials, error) {
	creds := Credentials{
		Login:    strings.TrimSpace(cfg.Login),
		Password: cfg.Password,
	}
	if creds.Login == "" {
		creds.Login = strings.TrimSpace(os.Getenv(EnvLogin))
	}
	if creds.Password == "" {
		creds.Password = os.Getenv(EnvPassword)
	}

	if creds.Login == "" || creds.Password == "" {
		path := cfg.EnvFile
		if path == "" {
			path = DefaultEnvFile
		}
		values, err := godotenv.Read(path)
		switch {
		case err == nil:
			if creds.Login == "" {
				creds.Login = strings.TrimSpace(values[EnvLogin])
			}
			if creds.Password == "" {
				creds.Password = values[EnvPassword]
			}
		case errors.Is(err, fs.ErrNotExist) && cfg.EnvFile == "":
			// no default dotenv file
		default:
			return Credentials{}, fmt.Errorf("%w: read %s: %w", ErrCredentials, path, err)
		}
	}

	if creds.Login == "" {
		return Credentials{}, fmt.Errorf("%w: login is empty (set credentials.login or %s)", ErrCredentials, EnvLogin)
	}
	if creds.Password == "" {
		return Credentials{}, fmt.Errorf("%w: password is empty (set credentials.password or %s)", ErrCredentials, EnvPassword)
	}
	return creds, nil
}
