package dotdir_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/aona-labs/aona/pkg/dotdir"
)

var _ = Describe("dotdir.Manager agent key", func() {
	var tmpDir string
	var m *dotdir.Manager

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "dotdir-key-test-*")
		Expect(err).NotTo(HaveOccurred())
		m = dotdir.NewManager()
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("returns empty when no key was saved", func() {
		key, err := m.LoadAgentKey(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(key).To(BeEmpty())
	})

	It("saves and loads a key with owner-only permissions", func() {
		path, err := m.SaveAgentKey("abcdef", tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(filepath.Join(tmpDir, "agent.key")))

		info, err := os.Stat(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))

		key, err := m.LoadAgentKey(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(key).To(Equal("abcdef"))
	})

	It("never replaces a saved key", func() {
		_, err := m.SaveAgentKey("abcdef", tmpDir)
		Expect(err).NotTo(HaveOccurred())

		_, err = m.SaveAgentKey("012345", tmpDir)
		Expect(err).To(MatchError(dotdir.ErrAgentKeyExists))

		key, err := m.LoadAgentKey(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(key).To(Equal("abcdef"))
	})

	It("saves a new key after clearing the old one", func() {
		_, err := m.SaveAgentKey("abcdef", tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(m.ClearAgentKey(tmpDir)).To(Succeed())

		_, err = m.SaveAgentKey("012345", tmpDir)
		Expect(err).NotTo(HaveOccurred())

		key, err := m.LoadAgentKey(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(key).To(Equal("012345"))
	})

	It("refuses to save an empty key", func() {
		_, err := m.SaveAgentKey("  ", tmpDir)
		Expect(err).To(HaveOccurred())
	})

	It("clears a saved key and tolerates clearing twice", func() {
		_, err := m.SaveAgentKey("abcdef", tmpDir)
		Expect(err).NotTo(HaveOccurred())

		Expect(m.ClearAgentKey(tmpDir)).To(Succeed())
		Expect(m.ClearAgentKey(tmpDir)).To(Succeed())

		key, err := m.LoadAgentKey(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(key).To(BeEmpty())
	})
})
