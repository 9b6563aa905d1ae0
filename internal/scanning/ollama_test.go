package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

var _ = Describe("Ollama", func() {
	var (
		server *ghttp.Server
		ollama *Ollama
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		var err error
		ollama, err = NewOllama(server.URL()+"/", "llava")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("ScanBill", func() {
		When("the model answers with bill JSON", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.CombineHandlers(
					ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
					ghttp.VerifyContentType("application/json"),
					ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
						Message: ollamaMessage{Role: "assistant", Content: "```json\n{\"vendor_name\": \"BWSSB\", \"total_amount\": 420}\n```"},
						Done:    true,
					}),
				))
			})

			It("parses the response", func() {
				data, err := ollama.ScanBill(append([]byte{}, pngSignature...), "image/png")
				Expect(err).NotTo(HaveOccurred())
				Expect(data.VendorName).To(Equal("BWSSB"))
				Expect(data.TotalAmount.StringFixed(2)).To(Equal("420.00"))
			})
		})

		When("the photo is sent", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.CombineHandlers(
					ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
					ghttp.VerifyJSONRepresenting(ollamaChatRequest{
						Model: "llava",
						Messages: []ollamaMessage{
							{Role: "system", Content: ollamaSystemPrompt},
							{
								Role:    "user",
								Content: billScanPrompt,
								Images:  []string{base64.StdEncoding.EncodeToString(pngSignature)},
							},
						},
					}),
					ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
						Message: ollamaMessage{Role: "assistant", Content: `{"vendor_name": "BWSSB"}`},
						Done:    true,
					}),
				))
			})

			It("attaches it to the user message", func() {
				_, err := ollama.ScanBill(append([]byte{}, pngSignature...), "image/png")
				Expect(err).NotTo(HaveOccurred())
				Expect(server.ReceivedRequests()).To(HaveLen(1))
			})
		})

		When("the API fails", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))
			})

			It("returns the error", func() {
				_, err := ollama.ScanBill(append([]byte{}, pngSignature...), "image/png")
				Expect(err).To(MatchError(ContainSubstring("status 500")))
			})
		})

		When("the upload is not an image", func() {
			It("fails before calling the model", func() {
				_, err := ollama.ScanBill([]byte("hello"), "image/jpeg")
				Expect(err).To(MatchError(ErrUnsupportedImage))
				Expect(server.ReceivedRequests()).To(BeEmpty())
			})
		})
	})

	Describe("Generate", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
				ghttp.VerifyJSONRepresenting(ollamaChatRequest{
					Model:    "llava",
					Messages: []ollamaMessage{{Role: "user", Content: "hello"}},
				}),
				ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
					Message: ollamaMessage{Role: "assistant", Content: "  hi there  "},
					Done:    true,
				}),
			))
		})

		It("returns the trimmed reply", func() {
			text, err := ollama.Generate(context.Background(), "hello")
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("hi there"))
		})
	})
})

var _ = Describe("prepareImageData", func() {
	It("converts JPEG to PNG", func() {
		img := image.NewRGBA(image.Rect(0, 0, 4, 4))
		img.Set(1, 1, color.White)
		var buf bytes.Buffer
		Expect(jpeg.Encode(&buf, img, nil)).To(Succeed())

		out, mime, converted, err := prepareImageData(buf.Bytes(), " IMAGE/JPEG ")
		Expect(err).NotTo(HaveOccurred())
		Expect(mime).To(Equal("image/png"))
		Expect(converted).To(BeTrue())
		Expect(out[:8]).To(Equal(pngSignature))
	})

	It("passes PNG through", func() {
		in := append([]byte{}, pngSignature...)
		out, _, converted, err := prepareImageData(in, "image/png")
		Expect(err).NotTo(HaveOccurred())
		Expect(converted).To(BeFalse())
		Expect(out).To(Equal(in))
	})

	It("recognises HEIC by its brand", func() {
		Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypheic"))).To(BeTrue())
		Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypisom"))).To(BeFalse())
	})
})
