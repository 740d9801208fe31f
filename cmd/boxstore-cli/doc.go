// Package main provides the entry point for boxstore-cli.
//
// boxstore-cli opens the configured backend directly (Redis, Badger or
// memory) and runs one operation against the session store:
//
//	boxstore-cli ping
//	boxstore-cli session show bot1 deviceA
//	boxstore-cli -o json session checkout --release bot1 deviceA
//	boxstore-cli session checkin --file state.bin bot1 deviceA
//	boxstore-cli identity get bot1
//	boxstore-cli prekey list bot1
//	boxstore-cli purge --force bot1
package main
