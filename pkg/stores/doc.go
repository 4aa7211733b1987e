// Package stores persists the plugin ledger: which plugins are installed into
// which project for which platform, what each installation changed, and an
// append-only audit trail of install and uninstall attempts. The ledger is a
// SQLite database with embedded migrations.
package stores
