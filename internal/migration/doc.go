// Package migration moves a database dump from a source pod to a destination
// pod and restores it there.
//
// A run walks a fixed sequence of states:
//
//	Start -> PodsVerified -> BackedUp -> Downloaded -> SpaceChecked ->
//	DestinationReady -> Uploaded -> Verified -> Restored -> Done
//
// Any failure moves the run to Failed and ends it. Nothing is retried. The
// dump is hashed on the source pod, in the local staging directory and on the
// destination pod, and the restore command only runs when all three digests
// match.
//
// Vendor differences live behind the Strategy interface. MySQL covers
// MariaDB and MySQL; PostgreSQL covers PostgreSQL. The Migrator itself has no
// vendor-specific branches.
//
// Example usage:
//
//	strategy, err := migration.StrategyFor("mariadb")
//	if err != nil {
//		return err
//	}
//	m, err := migration.New(client, strategy, migration.WithLocalDir("/var/backups"))
//	if err != nil {
//		return err
//	}
//	result, err := m.Run(ctx, req)
//	if errors.Is(err, migration.ErrIntegrity) {
//		// the dump was not restored
//	}
package migration
