package types

// DocumentType 表示输入文件的格式
type DocumentType string

const (
	// DocumentTypePDF PDF 文档
	DocumentTypePDF DocumentType = "pdf"
	// DocumentTypeDOCX Word 文档（.doc 同样按 docx 处理）
	DocumentTypeDOCX DocumentType = "docx"
)

// RawDocument 一次分析调用中的输入文件
type RawDocument struct {
	Path string
	Type DocumentType
}

// SkillSet 按词表分类的技能集合，元素为首字母大写的规范名称
type SkillSet struct {
	Technical []string `json:"technical"`
	Soft      []string `json:"soft"`
	Tools     []string `json:"tools"`
}

// ExperienceInfo 工作经历相关的匹配结果。
// 三个字段互相独立，公司、职位和时间段之间不做配对。
type ExperienceInfo struct {
	Companies []string `json:"companies"`
	Positions []string `json:"positions"`
	Durations []string `json:"durations"`
}

// EducationInfo 教育经历相关的匹配结果，同样是互不关联的集合
type EducationInfo struct {
	Degrees      []string `json:"degrees"`
	Institutions []string `json:"institutions"`
	Years        []string `json:"years"`
}

// ContactInfo 联系方式，空字符串表示未找到
type ContactInfo struct {
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
}

// AnalysisResult 单个文档的分析结果
type AnalysisResult struct {
	RawTextLength  int            `json:"raw_text_length"`
	SampleText     string         `json:"sample_text"`
	Skills         SkillSet       `json:"skills"`
	Experience     ExperienceInfo `json:"experience"`
	Education      EducationInfo  `json:"education"`
	ContactInfo    ContactInfo    `json:"contact_info"`
	WordCount      int            `json:"word_count"`
	EstimatedPages int            `json:"estimated_pages"`
}

// AnalysisResponse 对外输出的包装：成功时内嵌结果，失败时只有 error 字段
type AnalysisResponse struct {
	*AnalysisResult
	Error string `json:"error,omitempty"`
}

// Failed 是否为失败结果
func (r AnalysisResponse) Failed() bool {
	return r.Error != ""
}

// NewSkillSet 返回所有字段都非 nil 的空集合，保证 JSON 输出为 []
func NewSkillSet() SkillSet {
	return SkillSet{Technical: []string{}, Soft: []string{}, Tools: []string{}}
}

// NewExperienceInfo 返回空的经历集合
func NewExperienceInfo() ExperienceInfo {
	return ExperienceInfo{Companies: []string{}, Positions: []string{}, Durations: []string{}}
}

// NewEducationInfo 返回空的教育集合
func NewEducationInfo() EducationInfo {
	return EducationInfo{Degrees: []string{}, Institutions: []string{}, Years: []string{}}
}
