// Package secrets encrypts external channel credentials before they are
// written to storage.
//
// A Box holds a 32-byte master key. Every Seal and Open call names a scope,
// normally the channel id; HKDF-SHA256 derives a per-scope AES-256-GCM key and
// the scope is also bound as additional authenticated data. Ciphertext is
// base64 encoded as nonce|ciphertext|tag.
//
//	key, _ := secrets.ParseKey(os.Getenv("CHANNEL_SECRETS_KEY"))
//	box, _ := secrets.NewBox(key)
//	sealed, _ := box.Seal(channel.ID, []byte(channel.Secret))
//	plain, _ := box.Open(channel.ID, sealed)
package secrets
