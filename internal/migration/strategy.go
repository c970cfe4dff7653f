package migration

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/alessio/shellescape"

	"github.com/giantswarm/kube-dbmigrate/internal/logging"
)

const (
	dumpBaseName      = "dump.sql"
	compressedSuffix  = ".gz"
	compressCommand   = "gzip"
	decompressCommand = "gunzip -c"

	// pipefailPrefix turns on pipefail where the remote shell supports it
	// so that a failing dump utility is not masked by the compressor.
	pipefailPrefix = "(set -o pipefail) 2>/dev/null && set -o pipefail; "
)

// Strategy supplies the vendor-specific parts of a migration. Implementations
// are stateless.
type Strategy interface {
	// Name returns the vendor family name.
	Name() string

	// DefaultPort returns the database port used when none is configured.
	DefaultPort() int

	// BackupCommand builds the command that dumps all databases on the
	// source pod into DumpPath(p.StagingDir, p.Compress).
	BackupCommand(p BackupParams) Command

	// RestoreCommand builds the command that loads p.DumpPath on the
	// destination pod.
	RestoreCommand(p RestoreParams) Command
}

// BackupParams parameterize a backup command.
type BackupParams struct {
	User       string
	Password   string
	Port       int
	StagingDir string
	Compress   bool
}

// RestoreParams parameterize a restore command.
type RestoreParams struct {
	User       string
	Password   string
	Port       int
	DumpPath   string
	Compressed bool
}

// Command is a shell command line together with the secrets embedded in it.
type Command struct {
	Text    string
	Secrets []string
}

// Redacted returns Text with every secret masked.
func (c Command) Redacted() string {
	return logging.RedactSecrets(c.Text, c.Secrets...)
}

// String returns the redacted command so a Command never prints a password.
func (c Command) String() string {
	return c.Redacted()
}

// DumpPath is the remote dump location inside stagingDir. Both vendor
// families share it.
func DumpPath(stagingDir string, compressed bool) string {
	name := dumpBaseName
	if compressed {
		name += compressedSuffix
	}
	return path.Join(stagingDir, name)
}

// Vendors lists the vendor names StrategyFor accepts.
func Vendors() []string {
	return []string{"mariadb", "mysql", "postgres", "postgresql"}
}

// StrategyFor selects a strategy by vendor name.
func StrategyFor(vendor string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(vendor)) {
	case "mariadb", "mysql":
		return MySQL{}, nil
	case "postgresql", "postgres":
		return PostgreSQL{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVendor, vendor)
	}
}

// dumpTo finishes a dump command: either compressing into path or
// redirecting straight into it.
func dumpTo(dump, dumpPath string, compress bool) string {
	if compress {
		return pipefailPrefix + dump + " | " + compressCommand + " > " + shellescape.Quote(dumpPath)
	}
	return dump + " > " + shellescape.Quote(dumpPath)
}

// secrets lists the forms a password takes in command text: raw, and
// shell-quoted when quoting changes it.
func secrets(password string) []string {
	if password == "" {
		return nil
	}
	if quoted := shellescape.Quote(password); quoted != password {
		return []string{password, quoted}
	}
	return []string{password}
}

func port(p int) string {
	return strconv.Itoa(p)
}
