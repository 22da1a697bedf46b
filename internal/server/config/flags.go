package config

import (
	"flag"
	"os"
	"time"

	"github.com/sgalindo-dev/veriauth/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line
// flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-v int      verification token validity, hours
//	-w int      session token validity, hours
//	-l string   base URL for verification links
//	-m string   SMTP host
//	-p int      SMTP port
//	-u string   SMTP user
//	-x string   SMTP password
//	-f string   From address for outbound email
//
// os.Args is first filtered to only these flags via flagx.FilterArgs, so
// parsing does not collide with flags owned by other components (such as
// the -c/-config JSON overlay flag).
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-v", "-w", "-l", "-m", "-p", "-u", "-x", "-f"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	verificationValidity := fs.Int("v", int(config.VerificationTokenValidity.Hours()), "verification token validity (in hours)")
	sessionValidity := fs.Int("w", int(config.SessionTokenValidity.Hours()), "session token validity (in hours)")

	fs.StringVar(&config.VerificationLinkBaseURL, "l", config.VerificationLinkBaseURL, "verification link base URL")
	fs.StringVar(&config.SMTPHost, "m", config.SMTPHost, "SMTP host")
	fs.IntVar(&config.SMTPPort, "p", config.SMTPPort, "SMTP port")
	fs.StringVar(&config.SMTPUser, "u", config.SMTPUser, "SMTP user")
	fs.StringVar(&config.SMTPPassword, "x", config.SMTPPassword, "SMTP password")
	fs.StringVar(&config.EmailFrom, "f", config.EmailFrom, "From address for outbound email")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.VerificationTokenValidity = time.Duration(*verificationValidity) * time.Hour
	config.SessionTokenValidity = time.Duration(*sessionValidity) * time.Hour
}
