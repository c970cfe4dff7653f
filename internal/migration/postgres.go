package migration

import (
	"strings"

	"github.com/alessio/shellescape"
)

// PostgreSQL is the strategy for PostgreSQL, built on pg_dumpall and psql.
//
// A non-empty password is passed through PGPASSWORD; otherwise -w makes the
// client fail instead of waiting for a password prompt that nobody answers.
type PostgreSQL struct{}

// restoreDatabase is the maintenance database psql connects to while
// replaying a pg_dumpall script.
const restoreDatabase = "postgres"

// Name implements Strategy.
func (PostgreSQL) Name() string { return "postgresql" }

// DefaultPort implements Strategy.
func (PostgreSQL) DefaultPort() int { return DefaultPostgresPort }

// BackupCommand implements Strategy.
//
//	[PGPASSWORD=PW] pg_dumpall --clean -U USER -p PORT [-w] [| gzip] > DIR/dump.sql[.gz]
func (PostgreSQL) BackupCommand(p BackupParams) Command {
	dump := pgClient(p.Password, []string{"pg_dumpall", "--clean", "-U", shellescape.Quote(p.User), "-p", port(p.Port)})

	return Command{
		Text:    dumpTo(dump, DumpPath(p.StagingDir, p.Compress), p.Compress),
		Secrets: secrets(p.Password),
	}
}

// RestoreCommand implements Strategy.
//
//	gunzip -c FILE | [PGPASSWORD=PW] psql -U USER -p PORT [-w] postgres
//	[PGPASSWORD=PW] psql -U USER -p PORT [-w] -f FILE postgres
func (PostgreSQL) RestoreCommand(p RestoreParams) Command {
	conn := []string{"psql", "-U", shellescape.Quote(p.User), "-p", port(p.Port)}

	var text string
	if p.Compressed {
		text = pipefailPrefix + decompressCommand + " " + shellescape.Quote(p.DumpPath) + " | " +
			pgClient(p.Password, conn, restoreDatabase)
	} else {
		text = pgClient(p.Password, conn, "-f", shellescape.Quote(p.DumpPath), restoreDatabase)
	}

	return Command{Text: text, Secrets: secrets(p.Password)}
}

// pgClient renders a PostgreSQL client invocation with the password rule
// applied: PGPASSWORD when set, otherwise -w after the connection flags.
func pgClient(password string, conn []string, rest ...string) string {
	args := append([]string{}, conn...)
	if password == "" {
		args = append(args, "-w")
	}
	args = append(args, rest...)

	cmd := strings.Join(args, " ")
	if password != "" {
		cmd = "PGPASSWORD=" + shellescape.Quote(password) + " " + cmd
	}
	return cmd
}
