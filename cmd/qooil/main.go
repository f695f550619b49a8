// Command qooil is the CLI front end for the file-transfer service: it
// either serves a directory or drives an interactive client against a
// running server.
package main

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/qooil/qooil/client"
	"github.com/qooil/qooil/server"
)

const (
	version     = "0.1.0"
	defaultPort = 7070
)

func main() {
	var (
		serve   = pflag.BoolP("server", "s", false, "run as a server")
		_       = pflag.BoolP("client", "c", true, "run as client (default)")
		addr    = pflag.StringP("addr", "a", "", "address to bind (server mode) or connect to (client mode)")
		port    = pflag.IntP("port", "p", defaultPort, "port")
		jobs    = pflag.IntP("jobs", "j", runtime.NumCPU(), "server thread-pool size")
		root    = pflag.String("root", ".", "directory to serve, the sandbox root (server mode)")
		maxName = pflag.Uint64("max-name", 255, "advertised maximum path-segment length")
		maxPath = pflag.Uint64("max-path", 4096, "advertised maximum virtual path length")
		verbose = pflag.CountP("verbose", "v", "increase log verbosity (repeatable)")
		help    = pflag.BoolP("help", "h", false, "print help and exit")
		showVer = pflag.Bool("version", false, "print the version and exit")
	)
	pflag.Parse()

	if *help {
		pflag.Usage()
		return
	}
	if *showVer {
		fmt.Println("qooil", version)
		return
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetLevel(verbosityLevel(*verbose))
	entry := logrus.NewEntry(log)

	hostPort := net.JoinHostPort(*addr, fmt.Sprint(*port))
	if *serve {
		runServer(entry, hostPort, *root, *maxName, *maxPath, *jobs)
		return
	}
	runClient(entry, hostPort)
}

// verbosityLevel maps repeated -v flags onto logrus levels: none is Info,
// one is Debug, two or more is Trace.
func verbosityLevel(count int) logrus.Level {
	switch {
	case count >= 2:
		return logrus.TraceLevel
	case count == 1:
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}

func runServer(log *logrus.Entry, addr, root string, maxName, maxPath uint64, jobs int) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.WithError(err).Fatal("qooil: failed to listen")
	}
	log.WithFields(logrus.Fields{"addr": addr, "root": root, "jobs": jobs}).Info("qooil: serving")

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("qooil: shutting down")
		cancel()
	}()

	err = server.Serve(ctx, ln, server.Config{
		Root:           root,
		MaxName:        maxName,
		MaxPath:        maxPath,
		Version:        version,
		MaxConnections: jobs,
		Logger:         log,
	})
	if err != nil {
		log.WithError(err).Fatal("qooil: server exited with an error")
	}
}

func runClient(log *logrus.Entry, addr string) {
	c, err := client.Dial(addr, client.WithDialTimeout(10*time.Second), client.WithLogger(log))
	if err != nil {
		log.WithError(err).Fatal("qooil: failed to connect")
	}
	defer c.Close()

	fmt.Printf("connected to %s. type 'help' for commands.\n", addr)
	repl(c)
}

func repl(c *client.Client) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("qooil> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]

		if cmd == "quit" || cmd == "exit" {
			return
		}
		if err := dispatch(c, cmd, args); err != nil {
			fmt.Println("error:", err)
		}
	}
}

func dispatch(c *client.Client, cmd string, args []string) error {
	switch cmd {
	case "help":
		printHelp()
		return nil
	case "ping":
		return c.Ping()
	case "stat":
		maxName, maxPath, err := c.Info()
		if err != nil {
			return err
		}
		fmt.Printf("max_name=%d max_path=%d\n", maxName, maxPath)
		return nil
	case "pwd":
		path, err := c.GetCwd()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	case "cd":
		if len(args) != 1 {
			return fmt.Errorf("usage: cd <path>")
		}
		return c.SetCwd(args[0])
	case "ls":
		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		return listDir(c, path)
	case "get":
		if len(args) != 2 {
			return fmt.Errorf("usage: get <remote path> <local path>")
		}
		return getFile(c, args[0], args[1])
	case "put":
		if len(args) != 2 {
			return fmt.Errorf("usage: put <remote path> <local path>")
		}
		return putFile(c, args[1], args[0])
	case "cat":
		if len(args) != 1 {
			return fmt.Errorf("usage: cat <remote path>")
		}
		return catFile(c, args[0])
	case "delete", "rm":
		if len(args) != 1 {
			return fmt.Errorf("usage: delete <remote path>")
		}
		return c.DeleteFile(args[0])
	default:
		return fmt.Errorf("unknown command %q; type 'help'", cmd)
	}
}

func printHelp() {
	fmt.Println(`commands:
  help                       show this message
  ping                       check the connection
  stat                       show server path-length limits
  pwd                        print the virtual current directory
  cd <path>                  change the virtual current directory
  ls [path]                  list directory entries
  cat <path>                 print a remote file to stdout
  get <remote> <local>       download a file
  put <remote> <local>       upload a file
  delete <path>              remove a remote file
  quit                       close the connection and exit`)
}

func listDir(c *client.Client, path string) error {
	it, err := c.ListEntries(path)
	if err != nil {
		return err
	}
	for {
		e, ok, err := it.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if e.IsDir {
			fmt.Println(e.Name + "/")
		} else {
			fmt.Println(e.Name)
		}
	}
}

func getFile(c *client.Client, remote, local string) error {
	f, err := os.Create(local)
	if err != nil {
		return err
	}
	defer f.Close()
	return c.GetFile(remote, f)
}

func putFile(c *client.Client, local, remote string) error {
	f, err := os.Open(local)
	if err != nil {
		return err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return err
	}
	return c.PutFile(remote, f, fi.Size())
}

func catFile(c *client.Client, remote string) error {
	return c.GetFile(remote, os.Stdout)
}

