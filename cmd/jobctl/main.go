package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/S0me0neR0man/jobstash/internal/client"
	"github.com/S0me0neR0man/jobstash/internal/config"
)

const callTimeout = 5 * time.Second

func main() {
	conf, err := config.NewConfig()
	if err != nil {
		log.Fatal(err)
	}

	c, err := client.NewGRPClient(conf.Listen, conf.Token)
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	fmt.Printf("jobstash shell, server %s. Type help for commands\n", conf.Listen)

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			log.Fatal(err)
		}
		eof := err == io.EOF

		cmd, perr := parse(strings.TrimSpace(line))
		switch {
		case perr != nil:
			fmt.Println("error:", perr)
		case cmd.name == "exit" || cmd.name == "quit":
			return
		default:
			ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
			if err := execute(ctx, c, cmd, os.Stdout); err != nil {
				fmt.Println("error:", err)
			}
			cancel()
		}

		if eof {
			fmt.Println()
			return
		}
	}
}
