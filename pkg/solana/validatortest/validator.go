// Package validatortest runs a throwaway solana-test-validator in docker for
// integration tests.
package validatortest

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/pkg/errors"

	"github.com/solfarm/multisig-cli/pkg/retry"
	"github.com/solfarm/multisig-cli/pkg/retry/backoff"
	"github.com/solfarm/multisig-cli/pkg/solana"
)

const (
	containerName     = "solanalabs/solana"
	containerVersion  = "v1.18.26"
	containerAutoKill = 300 * time.Second

	rpcPort = 8899
)

// StartValidator starts a single node cluster whose genesis funds mint, and
// returns its JSON-RPC endpoint once it serves blockhashes.
func StartValidator(pool *dockertest.Pool, mint ed25519.PublicKey) (endpoint string, closeFunc func(), err error) {
	closeFunc = func() {}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository:   containerName,
		Tag:          containerVersion,
		Entrypoint:   []string{"solana-test-validator"},
		Cmd:          []string{"--mint", solana.Address(mint), "--ledger", "/tmp/ledger", "--reset", "--quiet"},
		ExposedPorts: []string{fmt.Sprintf("%d/tcp", rpcPort)},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return "", closeFunc, errors.Wrap(err, "failed to start resource")
	}

	closeFunc = func() {
		_ = pool.Purge(resource)
	}

	// Expire never returns an error.
	_ = resource.Expire(uint(containerAutoKill.Seconds()))

	endpoint = fmt.Sprintf("http://%s", resource.GetHostPort(fmt.Sprintf("%d/tcp", rpcPort)))
	client := solana.New(endpoint, nil)

	_, err = retry.Retry(
		func() error {
			_, err := client.GetLatestBlockhash(solana.CommitmentFinalized)
			return err
		},
		retry.Limit(120),
		retry.Backoff(context.Background(), backoff.Constant(time.Second), time.Second),
	)
	if err != nil {
		closeFunc()
		return "", func() {}, errors.Wrap(err, "timed out waiting for solana-test-validator to become available")
	}

	return endpoint, closeFunc, nil
}
