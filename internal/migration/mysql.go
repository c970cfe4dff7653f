package migration

import (
	"strings"

	"github.com/alessio/shellescape"
)

// MySQL is the strategy for MariaDB and MySQL, built on mysqldump and the
// mysql client.
type MySQL struct{}

// Name implements Strategy.
func (MySQL) Name() string { return "mysql" }

// DefaultPort implements Strategy.
func (MySQL) DefaultPort() int { return DefaultMySQLPort }

// BackupCommand implements Strategy.
//
//	mysqldump --all-databases -u USER -P PORT [-pPASSWORD] [| gzip] > DIR/dump.sql[.gz]
func (MySQL) BackupCommand(p BackupParams) Command {
	args := []string{"mysqldump", "--all-databases", "-u", shellescape.Quote(p.User), "-P", port(p.Port)}
	if p.Password != "" {
		args = append(args, "-p"+shellescape.Quote(p.Password))
	}

	return Command{
		Text:    dumpTo(strings.Join(args, " "), DumpPath(p.StagingDir, p.Compress), p.Compress),
		Secrets: secrets(p.Password),
	}
}

// RestoreCommand implements Strategy.
//
//	gunzip -c FILE | mysql -u USER [-pPASSWORD] -P PORT
//	mysql -u USER [-pPASSWORD] -P PORT < FILE
func (MySQL) RestoreCommand(p RestoreParams) Command {
	args := []string{"mysql", "-u", shellescape.Quote(p.User)}
	if p.Password != "" {
		args = append(args, "-p"+shellescape.Quote(p.Password))
	}
	args = append(args, "-P", port(p.Port))
	client := strings.Join(args, " ")

	var text string
	if p.Compressed {
		text = pipefailPrefix + decompressCommand + " " + shellescape.Quote(p.DumpPath) + " | " + client
	} else {
		text = client + " < " + shellescape.Quote(p.DumpPath)
	}

	return Command{Text: text, Secrets: secrets(p.Password)}
}
