package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/forest6511/muxpass/internal/app"
	"github.com/forest6511/muxpass/internal/cli"
	"github.com/forest6511/muxpass/pkg/security"
)

// console runs credential operations against a service and renders the
// results. Both the one-shot commands and the shell drive it.
type console struct {
	svc        *app.Service
	out        io.Writer
	errOut     io.Writer
	readSecret func(prompt string) (string, error)
	confirm    func(prompt string) (bool, error)
}

func (c *console) list(pattern string) error {
	creds, err := c.svc.ListCredentials()
	if err != nil {
		return err
	}
	if pattern != "" {
		creds, err = cli.Match(pattern, creds, credentialName)
		if err != nil {
			return err
		}
	}

	if len(creds) == 0 {
		fmt.Fprintln(c.out, "No credentials stored")
		return nil
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tNAME\tLINK\tPASSWORD")
	for i, cred := range creds {
		masked := cli.Mask(cred.MaskedLength)
		if cred.Unreadable {
			masked = "(unreadable)"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, cred.Name, cred.Link, masked)
	}
	return w.Flush()
}

// pick resolves name to exactly one credential. When several share the
// name, index (1-based) chooses among them.
func (c *console) pick(name string, index int) (app.Credential, error) {
	creds, err := c.svc.ListCredentials()
	if err != nil {
		return app.Credential{}, err
	}
	matches, err := cli.Match(name, creds, credentialName)
	if err != nil {
		return app.Credential{}, err
	}

	switch {
	case index > 0 && index <= len(matches):
		return matches[index-1], nil
	case index > len(matches):
		return app.Credential{}, fmt.Errorf("index %d out of range: %d credentials match '%s'", index, len(matches), name)
	case len(matches) > 1:
		return app.Credential{}, fmt.Errorf("%d credentials match '%s': choose one with --index", len(matches), name)
	default:
		return matches[0], nil
	}
}

func (c *console) show(name string, index int) error {
	cred, err := c.pick(name, index)
	if err != nil {
		return err
	}
	password, err := c.svc.Reveal(cred.Record)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, password)
	return nil
}

// add stores a credential, prompting for the password when it is empty.
func (c *console) add(name, link, password string) error {
	if password == "" {
		var err error
		password, err = c.readNewPassword()
		if err != nil {
			return err
		}
	}

	rec, report, err := c.svc.AddCredential(name, link, password)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Credential '%s' saved\n", rec.Name)
	c.advise(report)
	return nil
}

func (c *console) readNewPassword() (string, error) {
	first, err := c.readSecret("Password: ")
	if err != nil {
		return "", err
	}
	second, err := c.readSecret("Confirm password: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", fmt.Errorf("passwords do not match")
	}
	return first, nil
}

func (c *console) advise(report security.Report) {
	fmt.Fprintf(c.errOut, "Password strength: %s\n", report.Strength)
	if advice := report.Advice(); advice != "" {
		fmt.Fprintf(c.errOut, "Warning: %s\n", advice)
	}
}

func (c *console) edit(name string, index int, u app.Update) error {
	cred, err := c.pick(name, index)
	if err != nil {
		return err
	}
	updated, err := c.svc.UpdateCredential(cred.Record, u)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Credential '%s' updated\n", updated.Name)
	if u.Password != nil {
		c.advise(security.Evaluate(*u.Password))
	}
	return nil
}

// remove deletes every credential matching pattern, asking first unless
// force is set.
func (c *console) remove(pattern string, force bool) error {
	creds, err := c.svc.ListCredentials()
	if err != nil {
		return err
	}
	matches, err := cli.Match(pattern, creds, credentialName)
	if err != nil {
		return err
	}

	if !force {
		prompt := fmt.Sprintf("Delete '%s'?", matches[0].Name)
		if len(matches) > 1 {
			prompt = fmt.Sprintf("Delete %d credentials matching '%s'?", len(matches), pattern)
		}
		ok, err := c.confirm(prompt)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(c.out, "Cancelled")
			return nil
		}
	}

	for _, cred := range matches {
		if err := c.svc.DeleteCredential(cred.Record); err != nil {
			return fmt.Errorf("failed to delete '%s': %w", cred.Name, err)
		}
		fmt.Fprintf(c.out, "Credential '%s' deleted\n", cred.Name)
	}
	return nil
}

func credentialName(c app.Credential) string {
	return c.Name
}
