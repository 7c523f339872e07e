// Command boltping is a diagnostic CLI: it dials a server speaking
// this protocol, completes the handshake and auth exchange, runs one
// statement, pulls the result, and prints a summary.
package main

import (
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/op/go-logging"
	"github.com/urfave/cli"

	"github.com/nyxdb/boltwire"
	"github.com/nyxdb/boltwire/message"
	"github.com/nyxdb/boltwire/session"
)

var cliLog = boltwire.SetupLogging("boltping", logging.NOTICE, false)

func PrintFatal(msg string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, Red(fmt.Sprintf(msg, args...)))
	os.Exit(1)
}

// pingOne dials a single address and runs one statement against it,
// printing a colored trace of each stage as it completes.
func pingOne(addr, user, password, statement string) error {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("dial %s: %v", addr, err)
	}
	defer conn.Close()

	opts := boltwire.DefaultOptions("boltping/1.0")
	sess, err := session.Open(conn, opts)
	if err != nil {
		return fmt.Errorf("%s handshake: %v", addr, err)
	}
	fmt.Println(Cyan(fmt.Sprintf("%s: negotiated version %d", addr, sess.Version())))

	runErr := boltwire.GuardSession(sess, cliLog, func() error {
		auth := message.BuildAuthToken("basic", user, password)
		if err := sess.Authenticate(auth); err != nil {
			return fmt.Errorf("%s authenticate: %v", addr, err)
		}
		fmt.Println(Green(fmt.Sprintf("%s: authenticated", addr)))

		token, fields, err := sess.Run(statement, nil, nil)
		if err != nil {
			return fmt.Errorf("%s run: %v", addr, err)
		}
		fmt.Println(Yellow(fmt.Sprintf("%s: fields: %v", addr, fields)))

		count := 0
		summary, err := sess.Pull(token, func(r session.Record) error {
			count++
			fmt.Println(r.Values)
			return nil
		})
		if err != nil {
			return fmt.Errorf("%s pull: %v", addr, err)
		}
		fmt.Println(Green(fmt.Sprintf("%s: %d records, type=%s", addr, count, summary.ResultType)))
		return nil
	})
	if runErr != nil {
		return runErr
	}

	if err := sess.Close(); err != nil {
		return fmt.Errorf("%s close: %v", addr, err)
	}
	return nil
}

// pingCommand fans a ping out across every comma-separated address in
// --addr concurrently, one goroutine per address.
func pingCommand(c *cli.Context) error {
	raw := c.String("addr")
	user := c.String("user")
	password := c.String("password")
	statement := c.String("statement")
	if raw == "" {
		PrintFatal("missing --addr")
	}

	addrs := strings.Split(raw, ",")
	var wg sync.WaitGroup
	var mu sync.Mutex
	var failures []string
	for _, addr := range addrs {
		addr := strings.TrimSpace(addr)
		wg.Add(1)
		go func() {
			defer wg.Done()
			boltwire.RecoverToLog(func() {
				if err := pingOne(addr, user, password, statement); err != nil {
					mu.Lock()
					failures = append(failures, err.Error())
					mu.Unlock()
				}
			}, cliLog)
		}()
	}
	wg.Wait()

	if len(failures) > 0 {
		PrintFatal(strings.Join(failures, "\n"))
	}
	return nil
}

func main() {
	app := cli.NewApp()
	app.Name = "boltping"
	app.Usage = "run a single statement against one or more servers speaking this protocol and print the result"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "addr", Usage: "comma-separated host:port addresses to dial"},
		cli.StringFlag{Name: "user", Value: "graphdb"},
		cli.StringFlag{Name: "password"},
		cli.StringFlag{Name: "statement", Value: "RETURN 1 AS n"},
	}
	app.Action = pingCommand
	if err := app.Run(os.Args); err != nil {
		PrintFatal(err.Error())
	}
}
