package infrastructure

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// StaticCredentials is a CredentialsProvider that always returns the
// configured login and password.
type StaticCredentials struct {
	Login    string
	Password string
}

// Credentials implements the application port.
func (c StaticCredentials) Credentials(string, int, bool) (string, string, error) {
	return c.Login, c.Password, nil
}

// PromptCredentials asks for credentials interactively. A configured
// login is reused and only the password is prompted for.
type PromptCredentials struct {
	In    io.Reader
	Out   io.Writer
	Login string
}

// Credentials implements the application port.
func (c *PromptCredentials) Credentials(host string, port int, proxy bool) (string, string, error) {
	reader := bufio.NewReader(c.In)
	login := c.Login
	if login == "" {
		fmt.Fprintf(c.Out, "Login for %s: ", host)
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", "", err
		}
		login = strings.TrimSpace(line)
	}
	fmt.Fprintf(c.Out, "Password for %s@%s: ", login, host)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", "", err
	}
	return login, strings.TrimRight(line, "\r\n"), nil
}
