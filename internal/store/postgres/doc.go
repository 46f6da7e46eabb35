// Package postgres implements the notification stores on PostgreSQL via pgx.
//
// MessageStorage, ChannelStore and DeliveryLogStorage own their tables and
// create them through Migrate. AccountStore only reads an existing users
// table whose name and columns come from AccountsConfig.
package postgres
