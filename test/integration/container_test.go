package integration

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"time"

	"github.com/saludsync/clinic/internal/platform/db"
)

const (
	pgImage    = "postgres:16-alpine"
	pgUser     = "clinic"
	pgPassword = "clinic"
	pgDatabase = "clinictest"
)

// pgContainer is a disposable Postgres started with the docker CLI.
type pgContainer struct {
	id      string
	name    string
	connStr string
}

func (c *pgContainer) stop() {
	_ = exec.Command("docker", "rm", "-f", c.id).Run()
}

// logs returns the tail of the container output, used when startup fails.
func (c *pgContainer) logs() string {
	out, _ := exec.Command("docker", "logs", "--tail", "20", c.id).CombinedOutput()
	return string(out)
}

// startPostgres returns the connection string of a fresh database and a
// function that removes the container.
func startPostgres(ctx context.Context) (string, func(), error) {
	port, err := freePort()
	if err != nil {
		return "", nil, fmt.Errorf("reserve port: %w", err)
	}

	c := &pgContainer{
		name: fmt.Sprintf("clinic-integration-test-%d", port),
		connStr: fmt.Sprintf("postgres://%s:%s@127.0.0.1:%d/%s?sslmode=disable",
			pgUser, pgPassword, port, pgDatabase),
	}
	_ = exec.CommandContext(ctx, "docker", "rm", "-f", c.name).Run()

	out, err := exec.CommandContext(ctx, "docker", "run", "-d", "--rm",
		"--name", c.name,
		"-p", fmt.Sprintf("127.0.0.1:%d:5432", port),
		"-e", "POSTGRES_USER="+pgUser,
		"-e", "POSTGRES_PASSWORD="+pgPassword,
		"-e", "POSTGRES_DB="+pgDatabase,
		pgImage,
	).CombinedOutput()
	if err != nil {
		return "", nil, fmt.Errorf("docker run %s: %w: %s", pgImage, err, out)
	}
	c.id = strings.TrimSpace(string(out))

	if err := c.waitReady(ctx, 45*time.Second); err != nil {
		logs := c.logs()
		c.stop()
		return "", nil, fmt.Errorf("%w\n%s", err, logs)
	}
	return c.connStr, c.stop, nil
}

// waitReady retries until db.NewPool can open and ping the database.
func (c *pgContainer) waitReady(ctx context.Context, limit time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	tick := time.NewTicker(300 * time.Millisecond)
	defer tick.Stop()
	var last error
	for {
		attempt, stop := context.WithTimeout(ctx, 2*time.Second)
		pool, err := db.NewPool(attempt, c.connStr, 1, 0)
		stop()
		if err == nil {
			pool.Close()
			return nil
		}
		last = err

		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres not ready after %v: %v", limit, last)
		case <-tick.C:
		}
	}
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
