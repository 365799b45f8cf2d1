package config

import (
	"net/url"
	"os"
	"strings"
)

// ContainerHost is how a container reaches services on its host
const ContainerHost = "host.docker.internal"

// InContainer reports whether the process runs inside a Docker container
func InContainer() bool {
	_, err := os.Stat("/.dockerenv")
	return err == nil
}

// ContainerRemote rewrites a loopback remote base URL to ContainerHost so a
// containerized server can still reach a remote environment running on the
// host. Other URLs are returned unchanged.
func ContainerRemote(remote string) string {
	u, err := url.Parse(remote)
	if err != nil {
		return remote
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "0.0.0.0":
		u.Host = strings.Replace(u.Host, u.Hostname(), ContainerHost, 1)
		return u.String()
	}
	return remote
}
