package initcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	initcmder "github.com/aona-labs/aona/cmd/aona/init"
	"github.com/aona-labs/aona/pkg/config"
)

var _ = Describe("NewInitCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Use).To(Equal("init"))
	})

	It("rejects any arguments", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Args(cmd, []string{"extra"})).To(HaveOccurred())
	})

	It("has a --reset-key flag", func() {
		cmd := initcmder.NewInitCmd()
		f := cmd.Flags().Lookup("reset-key")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal("false"))
	})

	It("has a --preset flag", func() {
		cmd := initcmder.NewInitCmd()
		f := cmd.Flags().Lookup("preset")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal(""))
	})
})

var _ = Describe("Init command execution", func() {
	var (
		tmpDir  string
		origDir string
		out     *bytes.Buffer
	)

	execute := func(args ...string) error {
		cmd := initcmder.NewInitCmd()
		cmd.SetOut(out)
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	readConfig := func() *config.Config {
		cfg := &config.Config{}
		_, err := toml.DecodeFile(filepath.Join(tmpDir, ".aona", "config.toml"), cfg)
		Expect(err).NotTo(HaveOccurred())
		return cfg
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "aona-init-test-*")
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())

		out = &bytes.Buffer{}
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	It("creates .aona with the default config", func() {
		Expect(execute()).To(Succeed())

		info, err := os.Stat(filepath.Join(tmpDir, ".aona"))
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())

		Expect(readConfig()).To(Equal(config.NewDefaultConfig()))
	})

	It("applies the localnet preset", func() {
		Expect(execute("--preset", "localnet")).To(Succeed())

		cfg := readConfig()
		Expect(cfg.Ledger.Provider).To(Equal("evm"))
		Expect(cfg.Ledger.ChainID).To(Equal(uint64(31337)))
		Expect(cfg.Pricing.Decimals).To(Equal(uint(18)))
	})

	It("rejects an unknown preset", func() {
		Expect(execute("--preset", "mainnet")).To(MatchError(ContainSubstring("unknown preset")))
	})

	It("leaves an existing config untouched", func() {
		Expect(execute("--preset", "sepolia")).To(Succeed())
		Expect(execute("--preset", "memory")).To(Succeed())

		Expect(out.String()).To(ContainSubstring("Already initialized"))
		Expect(readConfig().Ledger.ChainID).To(Equal(uint64(11155111)))
	})

	It("removes the saved agent key with --reset-key", func() {
		Expect(execute()).To(Succeed())
		keyPath := filepath.Join(tmpDir, ".aona", "agent.key")
		Expect(os.WriteFile(keyPath, []byte("abcdef\n"), 0o600)).To(Succeed())

		Expect(execute("--reset-key")).To(Succeed())

		Expect(out.String()).To(ContainSubstring("Removed saved agent key"))
		_, err := os.Stat(keyPath)
		Expect(os.IsNotExist(err)).To(BeTrue())
		Expect(readConfig()).To(Equal(config.NewDefaultConfig()))
	})

	It("keeps the saved agent key by default", func() {
		Expect(execute()).To(Succeed())
		keyPath := filepath.Join(tmpDir, ".aona", "agent.key")
		Expect(os.WriteFile(keyPath, []byte("abcdef\n"), 0o600)).To(Succeed())

		Expect(execute()).To(Succeed())

		_, err := os.Stat(keyPath)
		Expect(err).NotTo(HaveOccurred())
	})
})
