// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mstarongithub/wayward/config"
	"github.com/mstarongithub/wayward/ipc"
	"github.com/sirupsen/logrus"
	"gitlab.com/mstarongitlab/goutils/sliceutils"
)

var (
	utilAction *string = flag.String(
		"action",
		"outputs",
		"The action to perform. Can be one of:"+
			"\n\t- outputs: List available outputs"+
			"\n\t- modes: List available modes for an output"+
			"\n\t- tree, workspaces, transaction: Print the state of a running wayward"+
			"\n\t- command: Run a command in a running wayward"+
			"\n\t- subscribe: Print events of a running wayward",
	)
	outputSelection *string = flag.String(
		"output",
		"",
		"Output to perform the action on. Required for some actions",
	)
	commandString *string = flag.String(
		"command",
		"",
		"Command to run for -action command",
	)
	localOutputs *bool = flag.Bool(
		"local",
		false,
		"Start a backend to list outputs and modes instead of asking a running wayward",
	)
)

func utilMain(conf *config.Config) {
	if *help {
		utilHelpMessage()
		return
	}

	switch *utilAction {
	case "outputs", "modes":
		if *utilAction == "modes" && *outputSelection == "" {
			fmt.Println("Output has to be specified")
			return
		}
		if *localOutputs {
			utilLocalOutputs(conf)
			return
		}
		withClient(conf, func(client *ipc.Client) error {
			return utilListOutputs(client, *utilAction == "modes")
		})
	case "tree":
		withClient(conf, func(client *ipc.Client) error {
			result, err := client.Tree()
			return printResult(result, err)
		})
	case "workspaces":
		withClient(conf, func(client *ipc.Client) error {
			result, err := client.Workspaces()
			return printResult(result, err)
		})
	case "transaction":
		withClient(conf, func(client *ipc.Client) error {
			result, err := client.Transaction()
			return printResult(result, err)
		})
	case "command":
		command := *commandString
		if command == "" {
			command = strings.Join(flag.Args(), " ")
		}
		withClient(conf, func(client *ipc.Client) error {
			return client.Command(command)
		})
	case "subscribe":
		withClient(conf, utilSubscribe)
	default:
		fmt.Printf("Unknown action %q\n", *utilAction)
		utilHelpMessage()
	}
}

func utilHelpMessage() {
	fmt.Println("---- Help message for wayward in tool mode ----")
	fmt.Println("\nIn tool mode, wayward offers various tools for figuring out configurations and talking to a running wayward")
	fmt.Println("\nGeneral flags:")
	fmt.Println("\t-config: Path to the config file. Used to find the ipc socket")
	fmt.Println("\t-tool: Start as a tool instead of a compositor")
	fmt.Println("\t-help: Show this help message (or the one for compositor mode if -tool is not set)")
	fmt.Println("\nTool flags:")
	fmt.Println("\t-action: The action to perform. Can be one of:")
	fmt.Println("\t\t- (default) outputs: List available outputs")
	fmt.Println("\t\t- modes: List available modes for an output. Use with -output")
	fmt.Println("\t\t- tree, workspaces, transaction: Print the state of a running wayward as json")
	fmt.Println("\t\t- command: Run a command, given with -command or as the remaining arguments")
	fmt.Println("\t\t- subscribe: Print window, workspace and transaction events as they happen")
	fmt.Println("\t-output: Output to perform the action on. Required for -action modes")
	fmt.Println("\t-local: List outputs and modes by starting a backend instead of asking a running wayward")
}

func withClient(conf *config.Config, action func(client *ipc.Client) error) {
	client, err := ipc.Dial(conf.IPCSocket)
	if err != nil {
		logrus.WithError(err).Fatal("connecting to wayward")
	}
	defer client.Close()
	if err := action(client); err != nil {
		logrus.WithError(err).WithField("action", *utilAction).Fatal("running action")
	}
}

func printResult[T any](result T, err error) error {
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func utilListOutputs(client *ipc.Client, withModes bool) error {
	resp, err := client.Outputs(ipc.OutputRequest{
		IncludeModes:    withModes,
		SpecifiesOutput: *outputSelection != "",
		TargetOutput:    *outputSelection,
	})
	if err != nil {
		return err
	}
	if resp.OutputsFound == 0 {
		fmt.Printf("Output %s not found\n", *outputSelection)
		return nil
	}
	for i, o := range resp.Outputs {
		if !withModes {
			fmt.Printf("Output %v: %s\n", i, o.Name)
			continue
		}
		fmt.Printf("Modes for output %s:\n", o.Name)
		for _, mode := range o.Modes {
			if mode == o.Mode {
				fmt.Printf("\t- %s (current)\n", mode)
			} else {
				fmt.Printf("\t- %s\n", mode)
			}
		}
	}
	return nil
}

func utilSubscribe(client *ipc.Client) error {
	if err := client.Subscribe(ipc.EventWorkspace, ipc.EventWindow, ipc.EventTransaction); err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	for {
		ev, err := client.NextEvent()
		if err != nil {
			return err
		}
		if err := enc.Encode(ev); err != nil {
			return err
		}
	}
}

// utilLocalOutputs starts a backend of its own to see the outputs, for when
// no wayward is running
func utilLocalOutputs(conf *config.Config) {
	server, err := NewServer(conf)
	if err != nil {
		logrus.WithError(err).Fatal("initializing server")
	}
	if err = server.Start(); err != nil {
		logrus.WithError(err).Fatal("starting server")
	}

	outputs := server.GetOutputs()
	if *utilAction == "outputs" {
		for i, o := range outputs {
			fmt.Printf("Output %v: %s\n", i, o.wlr.Name())
		}
		return
	}
	filtered := sliceutils.Filter(outputs, func(o *output) bool {
		return o.wlr.Name() == *outputSelection
	})
	if len(filtered) == 0 {
		fmt.Printf("Output %s not found\n", *outputSelection)
		return
	}
	modes := filtered[0].wlr.Modes()
	fmt.Printf("Modes for output %s:\n", *outputSelection)
	for _, mode := range modes {
		if mode.Preferred() {
			fmt.Printf("\t- %dx%d@%d(Ratio: %d) (preferred)\n", mode.Width(), mode.Height(), mode.Refresh(), mode.PictureAspectRatio())
		} else {
			fmt.Printf("\t- %dx%d@%d(Ratio: %d)\n", mode.Width(), mode.Height(), mode.Refresh(), mode.PictureAspectRatio())
		}
	}
}
