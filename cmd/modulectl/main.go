// Command modulectl is a thin cobra front end over the module container:
// enough to enable, disable, install, resolve and inspect modules from a
// shell, the way dep's own cmd/dep exercises its solver.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	module "github.com/rpm-software-management/module-container-go"
	"github.com/rpm-software-management/module-container-go/config"
	"github.com/rpm-software-management/module-container-go/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	fs := config.Flags()

	root := &cobra.Command{
		Use:           "modulectl",
		Short:         "inspect and modify module stream state",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().AddFlagSet(fs)

	openContainer := func(cmd *cobra.Command) (*module.Container, error) {
		opts, err := config.Load(cmd.Flags())
		if err != nil {
			return nil, err
		}
		logger := log.New(os.Stderr)
		return module.NewContainer(opts, nil, logger, os.Stderr)
	}

	root.AddCommand(
		listCmd(openContainer),
		enableCmd(openContainer),
		disableCmd(openContainer),
		resetCmd(openContainer),
		installCmd(openContainer),
		uninstallCmd(openContainer),
		resolveCmd(openContainer),
		saveCmd(openContainer),
		rollbackCmd(openContainer),
	)
	return root
}

type openFunc func(cmd *cobra.Command) (*module.Container, error)

func listCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "list [subject]",
		Short: "list module builds matching a subject",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := open(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			var pkgs []*module.ModulePackage
			if len(args) == 1 {
				pkgs = c.FindSubject(args[0])
			} else {
				pkgs = c.AllPackages()
			}
			for _, p := range pkgs {
				fmt.Println(p.NSVCA())
			}
			return nil
		},
	}
}

func enableCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "enable <name> <stream>",
		Short: "enable a module stream",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSave(open, cmd, func(c *module.Container) error {
				return c.Enable(args[0], args[1])
			})
		},
	}
}

func disableCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "disable <name>",
		Short: "disable a module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSave(open, cmd, func(c *module.Container) error {
				return c.Disable(args[0])
			})
		},
	}
}

func resetCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <name>",
		Short: "reset a module to its default state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSave(open, cmd, func(c *module.Container) error {
				return c.Reset(args[0])
			})
		},
	}
}

func installCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "install <name> <stream> <profile>",
		Short: "install a module profile",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSave(open, cmd, func(c *module.Container) error {
				return c.Install(args[0], args[1], args[2])
			})
		},
	}
}

func uninstallCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall <name> <stream> <profile>",
		Short: "uninstall a module profile",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSave(open, cmd, func(c *module.Container) error {
				return c.Uninstall(args[0], args[1], args[2])
			})
		},
	}
}

func resolveCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "resolve the active module set and print any problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := open(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			res, err := c.Resolve(context.Background())
			if err != nil {
				return err
			}
			fmt.Println("result:", res.ErrKind)
			for _, group := range res.Problems {
				for _, p := range group {
					fmt.Println("  problem:", p)
				}
			}
			return nil
		},
	}
}

func saveCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "commit staged module state changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := open(cmd)
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Save()
		},
	}
}

func rollbackCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback",
		Short: "discard staged module state changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := open(cmd)
			if err != nil {
				return err
			}
			defer c.Close()
			c.Rollback()
			return nil
		},
	}
}

func withSave(open openFunc, cmd *cobra.Command, mutate func(*module.Container) error) error {
	c, err := open(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := mutate(c); err != nil {
		return err
	}
	return c.Save()
}
