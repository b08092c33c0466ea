package utils_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/aona-labs/aona/pkg/utils"
)

var _ = Describe("build metadata", func() {
	It("names the version in the user agent", func() {
		Expect(utils.UserAgent()).To(Equal("aona/" + utils.Version))
	})

	It("prints every stamped field", func() {
		info := utils.BuildInfo()
		Expect(info).To(ContainSubstring("Version: " + utils.Version))
		Expect(info).To(ContainSubstring("Sha: " + utils.Sha))
		Expect(info).To(ContainSubstring("Built at: " + utils.Buildtime))
	})
})
