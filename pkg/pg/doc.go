// Package pg bootstraps the PostgreSQL connection pool used by the
// persistent notification, channel and delivery-log stores.
//
// Config is populated from PG_* environment variables. Connect opens a
// pgxpool.Pool and pings it, retrying a few times while the database comes
// up. Migrate runs goose migrations from an fs.FS, normally an embed.FS
// compiled into the store package, and Healthcheck returns a probe suitable
// for the service health endpoint.
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//	if err := pg.Migrate(ctx, pool, cfg, postgres.Migrations, "migrations", log); err != nil {
//	    return err
//	}
package pg
