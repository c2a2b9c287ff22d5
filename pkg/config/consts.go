package config

const (
	EnvPrefix = "HARBORLINE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "HARBORLINE_DB_DSN"
	EnvDBHost = "HARBORLINE_DB_HOST"
	EnvDBUser = "HARBORLINE_DB_USER"
	EnvDBName = "HARBORLINE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
