package stages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mlopshq/pipeline-runner/clients/shell"
)

// fakeShellClient records every invoked command line and fails the ones
// matching a configured substring
type fakeShellClient struct {
	mu       sync.Mutex
	commands []string
	failOn   map[string]error
	startErr error
	stops    int
}

func newFakeShellClient() *fakeShellClient {
	return &fakeShellClient{
		failOn: make(map[string]error),
	}
}

func (f *fakeShellClient) RunCommand(ctx context.Context, dir string, env []string, command string, args ...string) (string, error) {

	full := command + " " + strings.Join(args, " ")

	f.mu.Lock()
	f.commands = append(f.commands, full)
	f.mu.Unlock()

	for substring, err := range f.failOn {
		if strings.Contains(full, substring) {
			return "", err
		}
	}

	return "", nil
}

func (f *fakeShellClient) StartCommand(ctx context.Context, dir string, env []string, command string, args ...string) (shell.RunningCommand, error) {

	full := command + " " + strings.Join(args, " ")

	f.mu.Lock()
	f.commands = append(f.commands, "start: "+full)
	f.mu.Unlock()

	if f.startErr != nil {
		return nil, f.startErr
	}

	return &fakeRunningCommand{client: f}, nil
}

func (f *fakeShellClient) countCommands(substring string) (count int) {

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, c := range f.commands {
		if strings.Contains(c, substring) {
			count++
		}
	}

	return count
}

type fakeRunningCommand struct {
	client *fakeShellClient
}

func (rc *fakeRunningCommand) Stop() error {
	rc.client.mu.Lock()
	rc.client.stops++
	rc.client.mu.Unlock()
	return nil
}

// fakeCredentialClient resolves every id to canned material
type fakeCredentialClient struct {
	values map[string]string
	dir    string
}

func newFakeCredentialClient(dir string) *fakeCredentialClient {
	return &fakeCredentialClient{
		values: map[string]string{},
		dir:    dir,
	}
}

func (f *fakeCredentialClient) Resolve(credentialID string) (string, error) {

	if value, ok := f.values[credentialID]; ok {
		return value, nil
	}

	return "", fmt.Errorf("unknown credential %v", credentialID)
}

func (f *fakeCredentialClient) ResolvePath(credentialID string) (string, error) {

	path := filepath.Join(f.dir, credentialID)
	if err := os.WriteFile(path, []byte("fake"), 0600); err != nil {
		return "", err
	}

	return path, nil
}
