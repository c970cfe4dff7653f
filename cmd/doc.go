// Package cmd provides the command-line interface for kube-dbmigrate.
//
// Command Structure:
//
//	kube-dbmigrate execute mariadb-migration-dump [flags]     # MariaDB/MySQL migration
//	kube-dbmigrate execute postgresql-migration-dump [flags]  # PostgreSQL migration
//	kube-dbmigrate history [--run ID]                         # Recorded runs
//	kube-dbmigrate contexts                                   # Kube contexts
//	kube-dbmigrate version                                    # Version information
//	kube-dbmigrate self-update                                # Update to latest release
//
// Values missing from the migration flags are prompted for on the terminal
// unless --non-interactive is set. Passwords can also be supplied through
// KUBE_DBMIGRATE_SPW and KUBE_DBMIGRATE_TPW.
package cmd
