package stepout

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/briandowns/spinner"
	json "github.com/nikkolasg/hexjson"
	"github.com/urfave/cli/v2"

	"github.com/drand/stepout/common/key"
	"github.com/drand/stepout/common/log"
	"github.com/drand/stepout/common/signature"
	"github.com/drand/stepout/internal/core"
	"github.com/drand/stepout/internal/fs"
	"github.com/drand/stepout/internal/metrics"
	"github.com/drand/stepout/internal/net"
	"github.com/drand/stepout/internal/store/boltdb"
)

const defaultTimeout = 10 * time.Second

const refreshRate = 100 * time.Millisecond

// ErrRejected is returned when a signature did not verify.
var ErrRejected = errors.New("signature rejected")

func newTransport(c *cli.Context, l log.Logger) (net.Transport, error) {
	addr := c.String(serverFlag.Name)
	switch c.String(transportFlag.Name) {
	case "tcp":
		return net.NewTCPTransport(l, addr), nil
	case "grpc":
		return net.NewGRPCTransport(l, addr, c.Bool(tlsFlag.Name))
	default:
		return nil, fmt.Errorf("unknown transport %q, expected tcp or grpc", c.String(transportFlag.Name))
	}
}

// newManager builds the manager from the group and step-out flags.
func newManager(c *cli.Context, l log.Logger, opts ...core.ConfigOption) (*core.Manager, error) {
	group, err := getGroup(c)
	if err != nil {
		return nil, err
	}
	opts = append(opts, core.WithLogger(l))
	if c.IsSet(stepOutFlag.Name) {
		opts = append(opts, core.WithStepOutSource(core.FileStepOutSource(c.String(stepOutFlag.Name))))
	}
	m, err := core.NewManager(group, opts...)
	if err != nil {
		return nil, err
	}
	if c.IsSet(stepOutFlag.Name) {
		if err := m.ReloadStepOut(c.Context); err != nil {
			return nil, fmt.Errorf("stepout: %w", err)
		}
	}
	return m, nil
}

func startMetrics(c *cli.Context, l log.Logger) func() {
	if !c.IsSet(metricsFlag.Name) {
		return func() {}
	}
	lis := metrics.Start(l, c.String(metricsFlag.Name))
	return func() {
		if lis != nil {
			_ = lis.Close()
		}
	}
}

// report prints the outcome of a verification, one distinct message per
// result, and returns an error for anything but Verified.
func report(c *cli.Context, v *core.Verification) error {
	w := c.App.Writer
	switch v.Result {
	case core.Verified:
		fmt.Fprintf(w, "Signature of member %d verified.\n", v.Index)
		return nil
	case core.Revoked:
		fmt.Fprintf(w, "Signature of member %d is REVOKED: the member stepped out of the group (step-out list epoch %d).\n",
			v.Index, v.Epoch)
	case core.Invalid:
		fmt.Fprintf(w, "Signature of member %d is INVALID: %v\n", v.Index, v.Reason)
	case core.TransportFailed:
		fmt.Fprintf(w, "Could not get a signature for member %d from the server: %v\n", v.Index, v.Reason)
	}
	return fmt.Errorf("%w: %s", ErrRejected, v.Result)
}

func getSignatureCmd(c *cli.Context) error {
	l := contextToLogger(c)
	defer startMetrics(c, l)()

	opts := make([]core.ConfigOption, 0, 2)
	tr, err := newTransport(c, l)
	if err != nil {
		return err
	}
	defer tr.Close()
	opts = append(opts, core.WithTransport(tr))

	if c.Bool(archiveFlag.Name) {
		folder, err := fs.CreateSecureFolder(c.String(folderFlag.Name))
		if err != nil {
			return err
		}
		group, err := getGroup(c)
		if err != nil {
			return err
		}
		store, err := boltdb.NewStore(l, folder, group.Scheme, nil)
		if err != nil {
			return fmt.Errorf("stepout: opening archive: %w", err)
		}
		defer store.Close()
		opts = append(opts, core.WithArchive(store))
	}

	m, err := newManager(c, l, opts...)
	if err != nil {
		return err
	}

	p := newPrompter(c)
	out := c.String(outFlag.Name)
	if out == "" {
		if out, err = p.ask("File to save the signature to"); err != nil {
			return err
		}
	}
	index, err := memberIndex(c, p)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, c.Duration(timeoutFlag.Name))
	defer cancel()

	s := spinner.New(spinner.CharSets[9], refreshRate, spinner.WithWriter(c.App.ErrWriter))
	s.Suffix = fmt.Sprintf("  requesting signature of member %d from %s", index, c.String(serverFlag.Name))
	s.Start()
	v, err := m.AcquireAndVerify(ctx, index)
	s.Stop()
	if err != nil {
		return err
	}
	if err := report(c, v); err != nil {
		return err
	}
	if err := core.SaveVerified(out, v); err != nil {
		return fmt.Errorf("stepout: saving signature: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Saved to %s\n", out)
	return nil
}

func loadSignature(c *cli.Context) (*signature.Signature, error) {
	if c.NArg() < 1 {
		return nil, errors.New("missing signature file argument")
	}
	sig := new(signature.Signature)
	if err := key.Load(c.Args().First(), sig); err != nil {
		return nil, fmt.Errorf("stepout: error loading signature file: %w", err)
	}
	return sig, nil
}

func verifyCmd(c *cli.Context) error {
	l := contextToLogger(c)
	sig, err := loadSignature(c)
	if err != nil {
		return err
	}
	m, err := newManager(c, l)
	if err != nil {
		return err
	}
	index := sig.Index
	if c.IsSet(indexFlag.Name) {
		if index, err = memberIndex(c, nil); err != nil {
			return err
		}
	}
	v, err := m.VerifySignature(sig, index)
	if err != nil {
		return err
	}
	return report(c, v)
}

func deriveKeyCmd(c *cli.Context) error {
	l := contextToLogger(c)
	m, err := newManager(c, l)
	if err != nil {
		return err
	}
	index, err := memberIndex(c, newPrompter(c))
	if err != nil {
		return err
	}
	resp, err := m.Execute(c.Context, core.Request{Op: core.OpDeriveKey, Index: index})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "# verification key %s\n", hex.EncodeToString(mustMarshal(resp.Key.VerificationKey(index))))
	return toml.NewEncoder(c.App.Writer).Encode(resp.Key.TOML(index))
}

func mustMarshal(p interface{ MarshalBinary() ([]byte, error) }) []byte {
	b, _ := p.MarshalBinary()
	return b
}

func showGroupCmd(c *cli.Context) error {
	group, err := getGroup(c)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "# group %q, scheme %s, %d members\n", group.ID, group.Scheme, group.Len())
	fmt.Fprintf(c.App.Writer, "# hash %s\n", hex.EncodeToString(group.Hash()))
	return toml.NewEncoder(c.App.Writer).Encode(group.TOML())
}

func inspectCmd(c *cli.Context) error {
	sig, err := loadSignature(c)
	if err != nil {
		return err
	}
	buff, err := json.MarshalIndent(sig, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, string(buff))
	return nil
}
