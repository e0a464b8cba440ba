package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// emuPerPixel converts slide pixel coordinates to English Metric Units
// at the OOXML default of 96 DPI.
const emuPerPixel = 9525

// PPTXBuilder implements DocumentBuilder by assembling a PresentationML
// package in memory. One builder produces one .pptx file.
type PPTXBuilder struct {
	widthPx  int
	heightPx int
	slides   []*pptxSlide
}

type pptxSlide struct {
	images []placedImage
	texts  []placedText
	tables []placedTable
}

type placedImage struct {
	path string
	box  BBox
}

type placedText struct {
	text  string
	box   BBox
	style TextStyle
}

type placedTable struct {
	cells [][]string
	box   BBox
}

// NewPPTXBuilder creates an empty presentation with the default 16:9
// slide size. SetSlideSize overrides it until the first slide is added.
func NewPPTXBuilder() *PPTXBuilder {
	return &PPTXBuilder{widthPx: 1280, heightPx: 720}
}

var _ DocumentBuilder = (*PPTXBuilder)(nil)

// SetSlideSize implements DocumentBuilder.SetSlideSize.
func (b *PPTXBuilder) SetSlideSize(widthPx, heightPx int) error {
	if widthPx <= 0 || heightPx <= 0 {
		return fmt.Errorf("invalid slide size %dx%d", widthPx, heightPx)
	}
	if len(b.slides) > 0 {
		return fmt.Errorf("slide size must be set before the first slide")
	}
	b.widthPx = widthPx
	b.heightPx = heightPx
	return nil
}

// AddBlankSlide implements DocumentBuilder.AddBlankSlide.
func (b *PPTXBuilder) AddBlankSlide() (int, error) {
	b.slides = append(b.slides, &pptxSlide{})
	return len(b.slides) - 1, nil
}

// AddImageElement implements DocumentBuilder.AddImageElement.
func (b *PPTXBuilder) AddImageElement(slide int, imagePath string, box BBox) error {
	s, err := b.slide(slide)
	if err != nil {
		return err
	}
	if imagePath == "" {
		return fmt.Errorf("image path cannot be empty")
	}
	if err := checkImageExt(imagePath); err != nil {
		return err
	}
	if box.Width <= 0 || box.Height <= 0 {
		box = BBox{X: 0, Y: 0, Width: float64(b.widthPx), Height: float64(b.heightPx)}
	}
	s.images = append(s.images, placedImage{path: imagePath, box: box})
	return nil
}

// AddTextElement implements DocumentBuilder.AddTextElement.
func (b *PPTXBuilder) AddTextElement(slide int, text string, box BBox, style TextStyle) error {
	s, err := b.slide(slide)
	if err != nil {
		return err
	}
	if text == "" {
		return fmt.Errorf("text cannot be empty")
	}
	s.texts = append(s.texts, placedText{text: text, box: box, style: style})
	return nil
}

// AddTableElement implements DocumentBuilder.AddTableElement.
func (b *PPTXBuilder) AddTableElement(slide int, cells [][]string, box BBox) error {
	s, err := b.slide(slide)
	if err != nil {
		return err
	}
	if len(cells) == 0 || len(cells[0]) == 0 {
		return fmt.Errorf("table cannot be empty")
	}
	cols := len(cells[0])
	for _, row := range cells {
		if len(row) != cols {
			return fmt.Errorf("table rows must have equal length")
		}
	}
	s.tables = append(s.tables, placedTable{cells: cells, box: box})
	return nil
}

// Save implements DocumentBuilder.Save.
func (b *PPTXBuilder) Save(path string) error {
	data, err := b.Bytes()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write presentation: %w", err)
	}
	return nil
}

// Bytes implements DocumentBuilder.Bytes. It assembles the full OOXML
// package: content types, relationships, one master/layout/theme and
// the slides with their media.
func (b *PPTXBuilder) Bytes() ([]byte, error) {
	if len(b.slides) == 0 {
		return nil, fmt.Errorf("presentation has no slides")
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	media := newMediaRegistry()
	for _, s := range b.slides {
		for _, img := range s.images {
			if err := media.register(img.path); err != nil {
				return nil, err
			}
		}
	}

	files := map[string]string{
		"[Content_Types].xml":                      b.contentTypesXML(media),
		"_rels/.rels":                              rootRelsXML,
		"ppt/presentation.xml":                     b.presentationXML(),
		"ppt/_rels/presentation.xml.rels":          b.presentationRelsXML(),
		"ppt/slideMasters/slideMaster1.xml":        slideMasterXML,
		"ppt/slideMasters/_rels/slideMaster1.xml.rels": slideMasterRelsXML,
		"ppt/slideLayouts/slideLayout1.xml":        slideLayoutXML,
		"ppt/slideLayouts/_rels/slideLayout1.xml.rels": slideLayoutRelsXML,
		"ppt/theme/theme1.xml":                     themeXML,
	}
	for i, s := range b.slides {
		n := i + 1
		files[fmt.Sprintf("ppt/slides/slide%d.xml", n)] = b.slideXML(s, media)
		files[fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", n)] = b.slideRelsXML(s, media)
	}

	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	for _, path := range media.paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read media %s: %w", path, err)
		}
		w, err := zw.Create("ppt/media/" + media.names[path])
		if err != nil {
			return nil, fmt.Errorf("failed to create media entry: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("failed to write media entry: %w", err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish package: %w", err)
	}
	return buf.Bytes(), nil
}

func (b *PPTXBuilder) slide(index int) (*pptxSlide, error) {
	if index < 0 || index >= len(b.slides) {
		return nil, fmt.Errorf("slide %d does not exist", index)
	}
	return b.slides[index], nil
}

// mediaRegistry assigns package-local names to referenced image files,
// deduplicating repeated paths.
type mediaRegistry struct {
	paths []string
	names map[string]string
}

func newMediaRegistry() *mediaRegistry {
	return &mediaRegistry{names: make(map[string]string)}
}

func (m *mediaRegistry) register(path string) error {
	if _, ok := m.names[path]; ok {
		return nil
	}
	if err := checkImageExt(path); err != nil {
		return err
	}
	m.paths = append(m.paths, path)
	m.names[path] = fmt.Sprintf("image%d%s", len(m.paths), strings.ToLower(filepath.Ext(path)))
	return nil
}

// checkImageExt rejects image types the package cannot embed.
func checkImageExt(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".png", ".jpg", ".jpeg":
		return nil
	}
	return fmt.Errorf("unsupported image type %q", ext)
}

func (b *PPTXBuilder) contentTypesXML(media *mediaRegistry) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Default Extension="png" ContentType="image/png"/>
<Default Extension="jpg" ContentType="image/jpeg"/>
<Default Extension="jpeg" ContentType="image/jpeg"/>
<Override PartName="/ppt/presentation.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"/>
<Override PartName="/ppt/slideMasters/slideMaster1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideMaster+xml"/>
<Override PartName="/ppt/slideLayouts/slideLayout1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideLayout+xml"/>
<Override PartName="/ppt/theme/theme1.xml" ContentType="application/vnd.openxmlformats-officedocument.theme+xml"/>
`)
	for i := range b.slides {
		fmt.Fprintf(&sb, `<Override PartName="/ppt/slides/slide%d.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slide+xml"/>`+"\n", i+1)
	}
	sb.WriteString("</Types>")
	return sb.String()
}

func (b *PPTXBuilder) presentationXML() string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:presentation xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
<p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst>
<p:sldIdLst>
`)
	for i := range b.slides {
		fmt.Fprintf(&sb, `<p:sldId id="%d" r:id="rId%d"/>`+"\n", 256+i, i+2)
	}
	fmt.Fprintf(&sb, `</p:sldIdLst>
<p:sldSz cx="%d" cy="%d"/>
<p:notesSz cx="6858000" cy="9144000"/>
</p:presentation>`, b.widthPx*emuPerPixel, b.heightPx*emuPerPixel)
	return sb.String()
}

func (b *PPTXBuilder) presentationRelsXML() string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideMaster" Target="slideMasters/slideMaster1.xml"/>
`)
	for i := range b.slides {
		fmt.Fprintf(&sb, `<Relationship Id="rId%d" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide" Target="slides/slide%d.xml"/>`+"\n", i+2, i+1)
	}
	sb.WriteString("</Relationships>")
	return sb.String()
}

func (b *PPTXBuilder) slideXML(s *pptxSlide, media *mediaRegistry) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
<p:cSld><p:spTree>
<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr>
<p:grpSpPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="0" cy="0"/><a:chOff x="0" y="0"/><a:chExt cx="0" cy="0"/></a:xfrm></p:grpSpPr>
`)
	shapeID := 2
	for _, img := range s.images {
		rel := slideImageRelID(s, img.path, media)
		fmt.Fprintf(&sb, `<p:pic><p:nvPicPr><p:cNvPr id="%d" name="Picture %d"/><p:cNvPicPr/><p:nvPr/></p:nvPicPr>
<p:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></p:blipFill>
<p:spPr><a:xfrm>%s</a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr></p:pic>
`, shapeID, shapeID, rel, xfrmXML(img.box))
		shapeID++
	}
	for _, txt := range s.texts {
		fmt.Fprintf(&sb, `<p:sp><p:nvSpPr><p:cNvPr id="%d" name="TextBox %d"/><p:cNvSpPr txBox="1"/><p:nvPr/></p:nvSpPr>
<p:spPr><a:xfrm>%s</a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr>
<p:txBody><a:bodyPr wrap="square"/><a:lstStyle/><a:p>%s<a:r>%s<a:t>%s</a:t></a:r></a:p></p:txBody></p:sp>
`, shapeID, shapeID, xfrmXML(txt.box), paragraphPropsXML(txt.style), runPropsXML(txt.style), escapeXML(txt.text))
		shapeID++
	}
	for _, tbl := range s.tables {
		fmt.Fprintf(&sb, `<p:graphicFrame><p:nvGraphicFramePr><p:cNvPr id="%d" name="Table %d"/><p:cNvGraphicFramePr/><p:nvPr/></p:nvGraphicFramePr>
<p:xfrm>%s</p:xfrm>
<a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/table">%s</a:graphicData></a:graphic></p:graphicFrame>
`, shapeID, shapeID, xfrmContentXML(tbl.box), tableXML(tbl))
		shapeID++
	}
	sb.WriteString(`</p:spTree></p:cSld>
<p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr>
</p:sld>`)
	return sb.String()
}

func (b *PPTXBuilder) slideRelsXML(s *pptxSlide, media *mediaRegistry) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout" Target="../slideLayouts/slideLayout1.xml"/>
`)
	seen := make(map[string]bool)
	for _, img := range s.images {
		rel := slideImageRelID(s, img.path, media)
		if seen[rel] {
			continue
		}
		seen[rel] = true
		fmt.Fprintf(&sb, `<Relationship Id="%s" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="../media/%s"/>`+"\n",
			rel, media.names[img.path])
	}
	sb.WriteString("</Relationships>")
	return sb.String()
}

// slideImageRelID derives the relationship ID a slide uses for an
// image, stable across the slide XML and its rels part. rId1 is the
// layout relationship, so images start at rId2.
func slideImageRelID(s *pptxSlide, path string, media *mediaRegistry) string {
	seen := make(map[string]int)
	next := 2
	for _, img := range s.images {
		if _, ok := seen[img.path]; !ok {
			seen[img.path] = next
			next++
		}
	}
	return fmt.Sprintf("rId%d", seen[path])
}

func xfrmXML(box BBox) string {
	return fmt.Sprintf(`<a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/>`,
		emu(box.X), emu(box.Y), emu(box.Width), emu(box.Height))
}

// xfrmContentXML is xfrmXML for graphic frames, which use the same
// children but carry them directly.
func xfrmContentXML(box BBox) string {
	return xfrmXML(box)
}

func paragraphPropsXML(style TextStyle) string {
	algn := ""
	switch style.Align {
	case "center":
		algn = "ctr"
	case "right":
		algn = "r"
	case "left":
		algn = "l"
	}
	if algn == "" {
		return ""
	}
	return fmt.Sprintf(`<a:pPr algn="%s"/>`, algn)
}

func runPropsXML(style TextStyle) string {
	var attrs strings.Builder
	if style.FontSizePt > 0 {
		fmt.Fprintf(&attrs, ` sz="%d"`, int(style.FontSizePt*100))
	}
	if style.Bold {
		attrs.WriteString(` b="1"`)
	}
	if style.Italic {
		attrs.WriteString(` i="1"`)
	}

	fill := ""
	if hex := normalizeHexColor(style.ColorHex); hex != "" {
		fill = fmt.Sprintf(`<a:solidFill><a:srgbClr val="%s"/></a:solidFill>`, hex)
	}
	return fmt.Sprintf(`<a:rPr lang="en-US"%s dirty="0">%s</a:rPr>`, attrs.String(), fill)
}

func tableXML(tbl placedTable) string {
	cols := len(tbl.cells[0])
	rows := len(tbl.cells)
	colWidth := emu(tbl.box.Width) / int64(cols)
	rowHeight := emu(tbl.box.Height) / int64(rows)

	var sb strings.Builder
	sb.WriteString(`<a:tbl><a:tblPr firstRow="1" bandRow="1"/><a:tblGrid>`)
	for i := 0; i < cols; i++ {
		fmt.Fprintf(&sb, `<a:gridCol w="%d"/>`, colWidth)
	}
	sb.WriteString(`</a:tblGrid>`)
	for _, row := range tbl.cells {
		fmt.Fprintf(&sb, `<a:tr h="%d">`, rowHeight)
		for _, cell := range row {
			fmt.Fprintf(&sb, `<a:tc><a:txBody><a:bodyPr/><a:lstStyle/><a:p><a:r><a:t>%s</a:t></a:r></a:p></a:txBody><a:tcPr/></a:tc>`,
				escapeXML(cell))
		}
		sb.WriteString(`</a:tr>`)
	}
	sb.WriteString(`</a:tbl>`)
	return sb.String()
}

func emu(px float64) int64 {
	return int64(px * emuPerPixel)
}

// normalizeHexColor returns the six hex digits of a #RRGGBB color, or
// empty when the value is not usable.
func normalizeHexColor(hex string) string {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return ""
	}
	for _, c := range hex {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return ""
		}
	}
	return strings.ToUpper(hex)
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}

const rootRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="ppt/presentation.xml"/>
</Relationships>`

const slideMasterXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:sldMaster xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
<p:cSld><p:spTree>
<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr>
<p:grpSpPr/>
</p:spTree></p:cSld>
<p:clrMap bg1="lt1" tx1="dk1" bg2="lt2" tx2="dk2" accent1="accent1" accent2="accent2" accent3="accent3" accent4="accent4" accent5="accent5" accent6="accent6" hlink="hlink" folHlink="folHlink"/>
<p:sldLayoutIdLst><p:sldLayoutId id="2147483649" r:id="rId1"/></p:sldLayoutIdLst>
</p:sldMaster>`

const slideMasterRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout" Target="../slideLayouts/slideLayout1.xml"/>
<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/theme" Target="../theme/theme1.xml"/>
</Relationships>`

const slideLayoutXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:sldLayout xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" type="blank">
<p:cSld name="Blank"><p:spTree>
<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr>
<p:grpSpPr/>
</p:spTree></p:cSld>
<p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr>
</p:sldLayout>`

const slideLayoutRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideMaster" Target="../slideMasters/slideMaster1.xml"/>
</Relationships>`

const themeXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<a:theme xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" name="Office">
<a:themeElements>
<a:clrScheme name="Office">
<a:dk1><a:sysClr val="windowText" lastClr="000000"/></a:dk1>
<a:lt1><a:sysClr val="window" lastClr="FFFFFF"/></a:lt1>
<a:dk2><a:srgbClr val="44546A"/></a:dk2>
<a:lt2><a:srgbClr val="E7E6E6"/></a:lt2>
<a:accent1><a:srgbClr val="4472C4"/></a:accent1>
<a:accent2><a:srgbClr val="ED7D31"/></a:accent2>
<a:accent3><a:srgbClr val="A5A5A5"/></a:accent3>
<a:accent4><a:srgbClr val="FFC000"/></a:accent4>
<a:accent5><a:srgbClr val="5B9BD5"/></a:accent5>
<a:accent6><a:srgbClr val="70AD47"/></a:accent6>
<a:hlink><a:srgbClr val="0563C1"/></a:hlink>
<a:folHlink><a:srgbClr val="954F72"/></a:folHlink>
</a:clrScheme>
<a:fontScheme name="Office">
<a:majorFont><a:latin typeface="Calibri Light"/><a:ea typeface=""/><a:cs typeface=""/></a:majorFont>
<a:minorFont><a:latin typeface="Calibri"/><a:ea typeface=""/><a:cs typeface=""/></a:minorFont>
</a:fontScheme>
<a:fmtScheme name="Office">
<a:fillStyleLst>
<a:solidFill><a:schemeClr val="phClr"/></a:solidFill>
<a:solidFill><a:schemeClr val="phClr"/></a:solidFill>
<a:solidFill><a:schemeClr val="phClr"/></a:solidFill>
</a:fillStyleLst>
<a:lnStyleLst>
<a:ln w="6350"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln>
<a:ln w="12700"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln>
<a:ln w="19050"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln>
</a:lnStyleLst>
<a:effectStyleLst>
<a:effectStyle><a:effectLst/></a:effectStyle>
<a:effectStyle><a:effectLst/></a:effectStyle>
<a:effectStyle><a:effectLst/></a:effectStyle>
</a:effectStyleLst>
<a:bgFillStyleLst>
<a:solidFill><a:schemeClr val="phClr"/></a:solidFill>
<a:solidFill><a:schemeClr val="phClr"/></a:solidFill>
<a:solidFill><a:schemeClr val="phClr"/></a:solidFill>
</a:bgFillStyleLst>
</a:fmtScheme>
</a:themeElements>
</a:theme>`
