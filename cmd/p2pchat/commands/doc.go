// Package commands defines the p2pchat CLI.
//
// Commands
//
//   - run       Start a node and the local operator bridge
//   - keygen    Write a new identity seed to a file
//   - version   Print the protocol version
//
// # Configuration
//
// Every run flag can also be set through the environment with a P2PCHAT_
// prefix (P2PCHAT_PORT, P2PCHAT_WEB_PORT, ...) or in a YAML file given
// with --config. Flags win over the environment, which wins over the file.
package commands
