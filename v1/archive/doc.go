// Package archive keeps dead-lettered messages in a SQL table so they can be
// inspected after the dead-letter queue was drained.
//
// An *Archive is a delivery.DeadLetterSink: attach it to a
// delivery.DeadLetterObserver and every message the observer acknowledges is
// inserted into the dead_letters table first.
//
//	a, err := archive.NewArchive(archive.Config{
//		Driver: archive.DriverPostgres,
//		DSN:    "host=localhost port=5432 user=app password=secret dbname=app sslmode=disable",
//	})
//	if err != nil {
//		return err
//	}
//	defer a.Close()
//
//	observer, _ := delivery.NewDeadLetterObserver(client, delivery.ObserverConfig{Queue: "dlx"})
//	observer.WithSink(a)
//
// PostgreSQL is the default; set Driver to "mysql" for MySQL or MariaDB. The
// table is created or updated with gorm's AutoMigrate when the archive is
// opened. Headers are stored in a JSON column (jsonb on PostgreSQL).
package archive
