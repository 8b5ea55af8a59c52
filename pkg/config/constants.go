package config

// EnvPrefix is intentionally empty; every field carries its fully-qualified
// CAREBRIDGE_ variable name in its envconfig tag.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "CAREBRIDGE_DB_DSN"
	EnvDBHost = "CAREBRIDGE_DB_HOST"
	EnvDBUser = "CAREBRIDGE_DB_USER"
	EnvDBName = "CAREBRIDGE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
