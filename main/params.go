// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"flag"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	versionKey      = "version"
	httpPortKey     = "http-port"
	tickIntervalKey = "tick-interval-ms"
	clusterIDKey    = "cluster-id"
	genesisFileKey  = "genesis"
	faucetKey       = "faucet-lamports"
)

func buildFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("solana-localnet", flag.ContinueOnError)

	fs.Bool(versionKey, false, "If true, prints version and quits")
	fs.Uint(httpPortKey, 8899, "Port the JSON-RPC facade listens on")
	fs.Uint(tickIntervalKey, 400, "Block production cadence in milliseconds (0 = manual advance only)")
	fs.String(clusterIDKey, "local", "Cluster identifier baked into genesis")
	fs.String(genesisFileKey, "", "Path to a JSON genesis configuration; defaults are used if empty")
	fs.Uint64(faucetKey, 0, "If non-zero, lamports minted to a fresh faucet key at startup")

	return fs
}

// getViper returns the viper environment for the node binary
func getViper() (*viper.Viper, error) {
	v := viper.New()

	fs := buildFlagSet()
	pflag.CommandLine.AddGoFlagSet(fs)
	pflag.Parse()
	if err := v.BindPFlags(pflag.CommandLine); err != nil {
		return nil, err
	}

	return v, nil
}
