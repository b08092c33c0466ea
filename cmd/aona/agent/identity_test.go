package agentcmder

import (
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/aona-labs/aona/pkg/dotdir"
	"github.com/aona-labs/aona/pkg/wallet"
)

const (
	configuredKey     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	configuredAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

var _ = Describe("agent identity", func() {
	var (
		tmpDir  string
		cmder   *agentCommander
		manager *dotdir.Manager
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "aona-agent-identity-*")
		Expect(err).NotTo(HaveOccurred())

		cmder = &agentCommander{
			configDir: tmpDir,
			viper:     viper.New(),
			logger:    zap.NewNop(),
		}
		manager = dotdir.NewManager()
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	savedKey := func() string {
		key, err := manager.LoadAgentKey(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		return key
	}

	It("uses a valid configured key without saving it", func() {
		cmder.viper.Set("agent.private_key", configuredKey)

		id, err := cmder.identity()
		Expect(err).NotTo(HaveOccurred())
		Expect(id.Address).To(Equal(configuredAddress))
		Expect(savedKey()).To(BeEmpty())
	})

	It("generates and saves a key when nothing is configured", func() {
		id, err := cmder.identity()
		Expect(err).NotTo(HaveOccurred())
		Expect(id.Generated).To(BeTrue())
		Expect(savedKey()).To(Equal(id.HexKey()))

		again, err := cmder.identity()
		Expect(err).NotTo(HaveOccurred())
		Expect(again.Address).To(Equal(id.Address))
		Expect(again.Generated).To(BeFalse())
	})

	It("falls back to the saved key when the configured key is invalid", func() {
		saved, err := wallet.Generate()
		Expect(err).NotTo(HaveOccurred())
		_, err = manager.SaveAgentKey(saved.HexKey(), tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmder.viper.Set("agent.private_key", "not-a-key")

		id, err := cmder.identity()
		Expect(err).NotTo(HaveOccurred())
		Expect(id.Address).To(Equal(saved.Address))
		Expect(savedKey()).To(Equal(saved.HexKey()))
	})

	It("keeps an unreadable saved key instead of replacing it", func() {
		_, err := manager.SaveAgentKey("garbage", tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmder.viper.Set("agent.private_key", "not-a-key")

		id, err := cmder.identity()
		Expect(err).NotTo(HaveOccurred())
		Expect(id.Generated).To(BeTrue())
		Expect(savedKey()).To(Equal("garbage"))
	})
})
