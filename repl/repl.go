// Package repl implements the interactive command loop of the qooil
// client.
package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"aqwari.net/retry"
	"github.com/sirupsen/logrus"

	"github.com/qooil/qooil"
	"github.com/qooil/qooil/qooilproto"
)

const helpText = `commands:
  help                  show this text
  ping                  check that the server is alive
  pwd                   print the remote working directory
  cd <dir>              change the remote working directory
  ls [dir]              list a remote directory
  cat <file>            print a remote file
  get <remote> <local>  download a file
  put <remote> <local>  upload a file
  delete <file>         delete a remote file
  stat <path>           describe a remote path
  quit                  close the session
`

// maxConnectTries bounds how often a broken connection is redialed
// before the REPL gives up.
const maxConnectTries = 5

// A REPL reads commands from an input stream and runs them against a
// Qooil server, reconnecting with exponential back-off when the
// transport drops.
type REPL struct {
	addr   string
	in     *bufio.Scanner
	out    io.Writer
	client *qooil.Client
}

// New creates a REPL talking to the server at addr.
func New(addr string, in io.Reader, out io.Writer) *REPL {
	return &REPL{
		addr: addr,
		in:   bufio.NewScanner(in),
		out:  out,
	}
}

// Run executes commands until the input ends or the user quits.
func (r *REPL) Run() error {
	if err := r.connect(); err != nil {
		return err
	}
	defer r.client.Close()

	for {
		fmt.Fprint(r.out, "qooil> ")
		if !r.in.Scan() {
			return r.in.Err()
		}
		args := strings.Fields(r.in.Text())
		if len(args) == 0 {
			continue
		}
		if args[0] == "quit" {
			return r.client.Close()
		}
		if err := r.dispatch(args[0], args[1:]); err != nil {
			r.report(err)
		}
		if r.client.Closed() {
			fmt.Fprintln(r.out, "connection lost, reconnecting")
			if err := r.connect(); err != nil {
				return err
			}
		}
	}
}

func (r *REPL) connect() error {
	backoff := retry.Exponential(100 * time.Millisecond).Max(3 * time.Second)
	for try := 0; ; try++ {
		client, err := qooil.Dial(r.addr)
		if err == nil {
			r.client = client
			return nil
		}
		if try+1 >= maxConnectTries {
			return err
		}
		logrus.Warnf("connect %s: %v; retrying in %v", r.addr, err, backoff(try))
		time.Sleep(backoff(try))
	}
}

func (r *REPL) dispatch(cmd string, args []string) error {
	switch cmd {
	case "help":
		fmt.Fprint(r.out, helpText)
		return nil
	case "ping":
		if err := r.client.Ping(); err != nil {
			return err
		}
		fmt.Fprintln(r.out, "pong")
		return nil
	case "pwd":
		wd, err := r.client.Getwd()
		if err != nil {
			return err
		}
		fmt.Fprintln(r.out, wd)
		return nil
	case "cd":
		if len(args) != 1 {
			return errors.New("usage: cd <dir>")
		}
		return r.client.SetCwd(args[0])
	case "ls":
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}
		return r.list(dir)
	case "cat":
		if len(args) != 1 {
			return errors.New("usage: cat <file>")
		}
		_, err := r.client.GetFile(args[0], r.out)
		return err
	case "get":
		if len(args) != 2 {
			return errors.New("usage: get <remote> <local>")
		}
		return r.get(args[0], args[1])
	case "put":
		if len(args) != 2 {
			return errors.New("usage: put <remote> <local>")
		}
		return r.put(args[0], args[1])
	case "delete":
		if len(args) != 1 {
			return errors.New("usage: delete <file>")
		}
		return r.client.Remove(args[0])
	case "stat":
		if len(args) != 1 {
			return errors.New("usage: stat <path>")
		}
		return r.stat(args[0])
	}
	return fmt.Errorf("unknown command %q, try help", cmd)
}

func (r *REPL) list(dir string) error {
	if err := r.client.ListEntries(dir); err != nil {
		return err
	}
	var e qooil.Entry
	for {
		more, err := r.client.ReadEntry(&e)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
		if e.IsDir {
			fmt.Fprintf(r.out, "%s/\n", e.Name)
		} else {
			fmt.Fprintf(r.out, "%s\n", e.Name)
		}
	}
}

func (r *REPL) get(remote, local string) error {
	f, err := os.Create(local)
	if err != nil {
		return err
	}
	defer f.Close()
	n, err := r.client.GetFile(remote, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "%d bytes\n", n)
	return nil
}

func (r *REPL) put(remote, local string) error {
	f, err := os.Open(local)
	if err != nil {
		return err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return err
	}
	if !fi.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", local)
	}
	if err := r.client.PutFile(remote, f, uint64(fi.Size())); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "%d bytes\n", fi.Size())
	return nil
}

// stat has no protocol operation of its own; it lists the parent
// directory and reports the matching entry.
func (r *REPL) stat(path string) error {
	dir, base := ".", path
	if i := strings.LastIndex(strings.TrimRight(path, "/"), "/"); i >= 0 {
		dir, base = path[:i+1], strings.TrimRight(path, "/")[i+1:]
	}
	if base == "" || base == "." || base == ".." {
		return errors.New("stat: need a file or directory name")
	}
	if err := r.client.ListEntries(dir); err != nil {
		return err
	}
	found := false
	var e qooil.Entry
	for {
		more, err := r.client.ReadEntry(&e)
		if err != nil {
			return err
		}
		if !more {
			break
		}
		if string(e.Name) == base {
			found = true
			if e.IsDir {
				fmt.Fprintf(r.out, "%s: directory\n", path)
			} else {
				fmt.Fprintf(r.out, "%s: file\n", path)
			}
		}
	}
	if !found {
		fmt.Fprintf(r.out, "%s: not found\n", path)
	}
	return nil
}

func (r *REPL) report(err error) {
	var perr qooilproto.Error
	if errors.As(err, &perr) {
		fmt.Fprintf(r.out, "error: %s\n", perr.Code)
		return
	}
	fmt.Fprintf(r.out, "error: %v\n", err)
}
