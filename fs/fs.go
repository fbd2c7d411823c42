// Package appfs embeds the static assets shipped with the binaries.
package appfs

import "embed"

var (
	//go:embed migrations/*.sql
	Migrations embed.FS

	//go:embed templates
	Templates embed.FS

	//go:embed common-passwords.txt.gz
	CommonPasswords []byte
)

const (
	MigrationsDir     = "migrations"
	EmailTemplatesDir = "templates/email"
)
