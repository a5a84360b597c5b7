// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/utils/crypto"
	"github.com/ava-labs/avalanchego/utils/formatting"

	"github.com/jdesjarlais/solana/genesis"
	"github.com/jdesjarlais/solana/validator"
)

func main() {
	v, err := getViper()
	if err != nil {
		fmt.Printf("couldn't parse flags: %s\n", err)
		os.Exit(1)
	}

	if v.GetBool(versionKey) {
		fmt.Printf("solana-localnet@%s\n", validator.Version)
		os.Exit(0)
	}

	genesisConfig := genesis.DefaultConfig()
	if path := v.GetString(genesisFileKey); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Error("couldn't read genesis file", "path", path, "err", err)
			os.Exit(1)
		}
		if err := json.Unmarshal(raw, &genesisConfig); err != nil {
			log.Error("couldn't parse genesis file", "path", path, "err", err)
			os.Exit(1)
		}
	}
	genesisConfig.ClusterID = v.GetString(clusterIDKey)
	if genesisConfig.TimestampMillis == 0 {
		genesisConfig.TimestampMillis = time.Now().UnixMilli()
	}

	node, err := validator.New(validator.Config{
		Genesis:      genesisConfig,
		TickInterval: time.Duration(v.GetUint(tickIntervalKey)) * time.Millisecond,
	})
	if err != nil {
		// Genesis problems are fatal at startup; the process must not serve.
		log.Error("couldn't initialize validator", "err", err)
		os.Exit(1)
	}

	if lamports := v.GetUint64(faucetKey); lamports > 0 {
		if err := fundFaucet(node, lamports); err != nil {
			log.Error("couldn't fund faucet", "err", err)
			os.Exit(1)
		}
	}

	handler, err := node.Handlers()
	if err != nil {
		log.Error("couldn't build RPC handlers", "err", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", v.GetUint(httpPortKey)),
		Handler: handler,
	}
	go func() {
		log.Info("RPC facade listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("RPC server exited", "err", err)
		}
	}()

	node.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutting down", "signal", sig)

	node.Shutdown()
	_ = server.Close()
}

// fundFaucet mints a throwaway key and airdrops [lamports] to it so a test
// session has a spendable account without editing genesis.
func fundFaucet(node *validator.Validator, lamports uint64) error {
	factory := crypto.FactorySECP256K1R{}
	key, err := factory.NewPrivateKey()
	if err != nil {
		return err
	}
	addr := key.PublicKey().Address()
	if err := node.Airdrop(addr, lamports); err != nil {
		return err
	}
	keyHex, err := formatting.EncodeWithChecksum(formatting.Hex, key.Bytes())
	if err != nil {
		return err
	}
	log.Info("faucet funded", "address", addr, "lamports", lamports, "privateKey", keyHex)
	return nil
}
