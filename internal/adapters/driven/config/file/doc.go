// Package file provides a TOML file-based configuration store.
//
// Recognised keys:
//
//	google.client_id        OAuth client id
//	google.client_secret    OAuth client secret
//	google.redirect_url     OAuth callback URL
//	server.listen           HTTP listen address (default ":8080")
//	server.webhook_url      public URL the provider posts notifications to
//	sync.schedule           cron expression for the sweep (default "*/15 * * * *")
//	app.origin              default frontend origin for redirects
package file
