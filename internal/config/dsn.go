package config

import (
	"fmt"
	"net"
	neturl "net/url"
	"strconv"
	"strings"
)

// DSNValue builds the MySQL DSN from the structured fields unless a full DSN
// was given directly.
func (c DatabaseConfig) DSNValue() string {
	if v := strings.TrimSpace(c.DSN); v != "" {
		return v
	}

	host := strings.TrimSpace(c.Host)
	if host == "" {
		host = defaultDBHost
	}
	port := c.Port
	if port == 0 {
		port = defaultDBPort
	}
	user := strings.TrimSpace(c.User)
	if user == "" {
		user = defaultDBUser
	}
	password := strings.TrimSpace(c.Password)
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = defaultDBName
	}
	charset := strings.TrimSpace(c.Charset)
	if charset == "" {
		charset = defaultDBCharset
	}
	loc := strings.TrimSpace(c.Loc)
	if loc == "" {
		loc = defaultDBLoc
	}

	params := neturl.Values{}
	params.Set("charset", charset)
	params.Set("parseTime", "True")
	params.Set("loc", loc)

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?%s", user, password, addr, name, params.Encode())
}
