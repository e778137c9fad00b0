// Command tan-cli generates, hashes and checks TANs offline and calls a
// running tan-server to issue, verify, redeem and delete them.
//
// Usage:
//
//	tan-cli tan generate --type teletan -n 5
//	tan-cli tan check 29zAE4E
//	tan-cli --server localhost:8080 remote issue --type teletan
//	tan-cli -o json remote verify ffc079f1-7060-4adb-93f8-6a6b95ad1124
package main
