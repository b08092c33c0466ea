package dotdir_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/aona-labs/aona/pkg/dotdir"
)

// chdir moves into dir until the current test ends.
func chdir(dir string) {
	orig, err := os.Getwd()
	Expect(err).NotTo(HaveOccurred())
	Expect(os.Chdir(dir)).To(Succeed())
	DeferCleanup(func() { _ = os.Chdir(orig) })
}

var _ = Describe("Manager", func() {
	var (
		root string
		home string
		work string
		m    *dotdir.Manager
	)

	BeforeEach(func() {
		var err error
		// EvalSymlinks so results match filepath.Abs on macOS (/var -> /private/var).
		root, err = filepath.EvalSymlinks(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())

		home = filepath.Join(root, "home")
		work = filepath.Join(root, "work")
		Expect(os.Mkdir(home, 0o755)).To(Succeed())
		Expect(os.Mkdir(work, 0o755)).To(Succeed())

		GinkgoT().Setenv("HOME", home)
		chdir(work)

		m = dotdir.NewManager()
	})

	Describe("Target", func() {
		It("creates and returns an override dir", func() {
			dir := filepath.Join(root, "override")
			result, err := m.Target(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(dir))
			Expect(dir).To(BeADirectory())
		})

		It("prefers the override over a local .aona dir", func() {
			Expect(os.Mkdir(filepath.Join(work, ".aona"), 0o755)).To(Succeed())

			dir := filepath.Join(root, "override")
			Expect(m.Target(dir)).To(Equal(dir))
		})

		It("prefers a local .aona dir over the home one", func() {
			Expect(os.Mkdir(filepath.Join(work, ".aona"), 0o755)).To(Succeed())
			Expect(os.Mkdir(filepath.Join(home, ".aona"), 0o755)).To(Succeed())

			Expect(m.Target("")).To(Equal(filepath.Join(work, ".aona")))
		})

		It("falls back to the home .aona dir", func() {
			Expect(os.Mkdir(filepath.Join(home, ".aona"), 0o755)).To(Succeed())

			Expect(m.Target("")).To(Equal(filepath.Join(home, ".aona")))
		})

		It("ignores a .aona file that is not a directory", func() {
			Expect(os.WriteFile(filepath.Join(work, ".aona"), []byte("x"), 0o644)).To(Succeed())

			Expect(m.Target("")).To(BeEmpty())
		})

		It("returns empty when nothing resolves and does not create anything", func() {
			Expect(m.Target("")).To(BeEmpty())
			Expect(filepath.Join(home, ".aona")).NotTo(BeAnExistingFile())
		})
	})

	Describe("Ensure", func() {
		It("creates the home dir when nothing resolves", func() {
			result, err := m.Ensure("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(filepath.Join(home, ".aona")))
			Expect(result).To(BeADirectory())
		})

		It("returns the local dir when one exists", func() {
			Expect(os.Mkdir(filepath.Join(work, ".aona"), 0o755)).To(Succeed())

			Expect(m.Ensure("")).To(Equal(filepath.Join(work, ".aona")))
			Expect(filepath.Join(home, ".aona")).NotTo(BeAnExistingFile())
		})
	})
})
