package aonacmder_test

import (
	"bytes"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	aonacmder "github.com/aona-labs/aona/cmd/aona"
	"github.com/aona-labs/aona/pkg/report"
	"github.com/aona-labs/aona/pkg/utils"
)

var _ = Describe("aona", func() {
	var (
		configDir string
		out       *bytes.Buffer
	)

	execute := func(args ...string) error {
		cmd := aonacmder.NewAonaCmd()
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs(append(args, "--config-dir", configDir))
		return cmd.Execute()
	}

	BeforeEach(func() {
		configDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}
	})

	It("registers every subcommand", func() {
		names := []string{}
		for _, sub := range aonacmder.NewAonaCmd().Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements(
			"serve", "agent", "providers", "verify", "seed", "init", "config", "version",
		))
	})

	It("prints the short version", func() {
		Expect(execute("version", "--short")).To(Succeed())
		Expect(strings.TrimSpace(out.String())).To(Equal(utils.Version))
	})

	It("refuses to seed without --demo", func() {
		Expect(execute("seed")).To(MatchError(ContainSubstring("--demo")))
	})

	It("seeds sqlite storage", func() {
		db := filepath.Join(configDir, "aona.db")
		Expect(execute("seed", "--demo", "--history", "3", "--sqlite", db)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("9 readings"))
	})

	It("requires an amount to verify", func() {
		Expect(execute("verify", "0xabc")).To(MatchError(ContainSubstring("--amount")))
	})

	It("lists local providers from seeded storage", func() {
		db := filepath.Join(configDir, "aona.db")
		Expect(execute("seed", "--demo", "--history", "60", "--sqlite", db)).To(Succeed())

		out.Reset()
		Expect(execute("providers", "--local", "--json", "--sqlite", db)).To(Succeed())
		Expect(out.String()).To(ContainSubstring(`"source": "catalog"`))
		Expect(out.String()).To(ContainSubstring("node-0001"))
	})

	It("runs a self-contained agent pass on the memory ledger", func() {
		output := filepath.Join(configDir, "run.json")
		Expect(execute("agent", "--pace", "1ms", "-o", output)).To(Succeed())

		run, err := report.ReadFile(output)
		Expect(err).NotTo(HaveOccurred())
		Expect(run.Outcomes).To(HaveLen(3))
		Expect(run.Failures).To(BeEmpty())
		Expect(run.Summary).NotTo(BeNil())
		Expect(run.TotalSpent).To(BeNumerically(">", 0))

		Expect(filepath.Join(configDir, "agent.key")).To(BeAnExistingFile())
		Expect(out.String()).To(ContainSubstring("Colorado River"))
	})
})
